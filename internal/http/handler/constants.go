package handler

const (
	paramID   = "id"
	paramCode = "code"

	queryIncludeTrashed  = "include_trashed"
	queryIncludeArchived = "include_archived"

	downloadCacheKeyPrefix = "download:"
)

const (
	msgContentTypeJSONRequired = "content type must be application/json"
	msgInvalidRequestBody      = "invalid request body"
	msgInvalidEntryID          = "invalid entry id"
	msgInvalidParentID         = "invalid parent id"
	msgInvalidQueryFlag        = "invalid boolean query parameter"
	msgInvalidField            = "invalid value for field "
)
