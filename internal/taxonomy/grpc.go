package taxonomy

import (
	"strconv"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

// ErrorDomain is the ErrorInfo domain of records sent over gRPC.
const ErrorDomain = "skillgate"

// RetryHint is the RetryInfo delay attached to retry-safe records.
var RetryHint = time.Second

var statusToGRPC = map[int]codes.Code{
	400: codes.InvalidArgument,
	401: codes.Unauthenticated,
	402: codes.FailedPrecondition,
	403: codes.PermissionDenied,
	404: codes.NotFound,
	409: codes.Aborted,
	422: codes.InvalidArgument,
	423: codes.Unavailable,
	429: codes.ResourceExhausted,
	451: codes.PermissionDenied,
	495: codes.Unauthenticated,
	500: codes.Internal,
	502: codes.Unavailable,
	503: codes.Unavailable,
	504: codes.DeadlineExceeded,
}

var grpcToStatus = map[codes.Code]int{
	codes.InvalidArgument:    422,
	codes.Unauthenticated:    401,
	codes.FailedPrecondition: 402,
	codes.PermissionDenied:   403,
	codes.NotFound:           404,
	codes.Aborted:            409,
	codes.ResourceExhausted:  429,
	codes.Unavailable:        503,
	codes.DeadlineExceeded:   504,
}

// GRPCStatus lets status.FromError and status.Code understand records.
func (r *ErrorRecord) GRPCStatus() *status.Status {
	c, ok := statusToGRPC[r.Status]
	if !ok {
		c = codes.Unknown
	}
	st := status.New(c, r.Message)

	info := &errdetails.ErrorInfo{
		Reason: string(r.Code),
		Domain: ErrorDomain,
		Metadata: map[string]string{
			"strategy":    string(r.Recovery.Strategy),
			"retry_safe":  strconv.FormatBool(r.Recovery.RetrySafe),
			"request_id":  r.RequestID,
			"retry_count": strconv.Itoa(r.RetryCount),
		},
	}
	if r.Recovery.Fallback != "" {
		info.Metadata["fallback"] = r.Recovery.Fallback
	}

	var withDetails *status.Status
	var err error
	if r.Recovery.RetrySafe {
		withDetails, err = st.WithDetails(info, &errdetails.RetryInfo{RetryDelay: durationpb.New(RetryHint)})
	} else {
		withDetails, err = st.WithDetails(info)
	}
	if err != nil {
		return st
	}
	return withDetails
}

// FromGRPC rebuilds a record from a gRPC error. Errors carrying our
// ErrorInfo keep their exact code; others are classified from the status code.
func FromGRPC(err error) *ErrorRecord {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return Wrap(UnknownCode, err)
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		rec := New(Code(info.GetReason()), st.Message(), nil)
		rec.RequestID = orDefault(info.GetMetadata()["request_id"], rec.RequestID)
		if n, convErr := strconv.Atoi(info.GetMetadata()["retry_count"]); convErr == nil {
			rec.RetryCount = n
		}
		rec.Recovery.Fallback = info.GetMetadata()["fallback"]
		return rec
	}

	httpStatus, ok := grpcToStatus[st.Code()]
	if !ok {
		return New(UnknownCode, st.Message(), nil)
	}
	return New(Classify(httpStatus), st.Message(), nil)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
