package api

// AuthorizeResponse is the response for a decision.
type AuthorizeResponse struct {
	Granted      bool   `json:"granted" description:"Whether the request is granted"`
	Reason       string `json:"reason" description:"Reason code"`
	Detail       string `json:"detail,omitempty" description:"Human-readable detail"`
	PermissionID string `json:"permission_id,omitempty" description:"Permission that decided the outcome"`
	EvalTimeNs   int64  `json:"eval_time_ns" description:"Evaluation time in nanoseconds"`
}

// AuthorizeManyResponse contains results for a batch decision.
type AuthorizeManyResponse struct {
	Results []AuthorizeResponse `json:"results" description:"Results in request order"`
}

// PurgeResponse reports how many decision log entries were removed.
type PurgeResponse struct {
	Removed int64 `json:"removed" description:"Number of entries removed"`
}

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}
