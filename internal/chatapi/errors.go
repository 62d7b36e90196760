package chatapi

import "github.com/cortexhub/llmgateway/internal/gwerrors"

var (
	errMissingModel    = gwerrors.New(gwerrors.KindMalformedRequest, "model is required")
	errMissingMessages = gwerrors.New(gwerrors.KindMalformedRequest, "messages must not be empty")
)
