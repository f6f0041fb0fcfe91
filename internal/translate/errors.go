package translate

import "github.com/tidwall/gjson"

// mapErrorType converts an Anthropic error type (or one of the gateway's own
// error kinds) into the closest OpenAI error type.
func mapErrorType(anthropicType string) string {
	switch anthropicType {
	case "invalid_request_error", "model_not_allowed":
		return "invalid_request_error"
	case "authentication_error", "missing_auth", "invalid_key":
		return "authentication_error"
	case "permission_error", "tenant_disabled":
		return "permission_error"
	case "not_found_error":
		return "not_found_error"
	case "rate_limit_error", "limit_exceeded":
		return "rate_limit_error"
	case "overloaded_error", "no_upstream", "service_unavailable":
		return "service_unavailable"
	case "api_error", "upstream_error", "internal_error":
		return "api_error"
	default:
		return "api_error"
	}
}

// ErrorToOpenAI converts an error response body produced by the upstream or
// the gateway into the OpenAI error envelope. body may be the Anthropic
// {"type":"error","error":{...}} shape or the gateway's {"error":{...}}
// shape; anything unreadable becomes a generic api_error.
func ErrorToOpenAI(status int, body []byte) *OpenAIError {
	detail := OpenAIErrorDetail{
		Message: gjson.GetBytes(body, "error.message").String(),
		Type:    mapErrorType(gjson.GetBytes(body, "error.type").String()),
	}
	if detail.Message == "" {
		detail.Message = "upstream returned an error"
	}
	switch status {
	case 401:
		detail.Code = "invalid_api_key"
	case 429:
		detail.Code = "rate_limit_exceeded"
	}
	return &OpenAIError{Error: detail}
}
