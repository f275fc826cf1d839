package wechat

import "fmt"

// APIError is a platform rejection reported as errcode/errmsg.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("errcode %d: %s", e.Code, e.Message)
}

// AuthError means the platform refused to issue an access token.
// Nothing in a batch can proceed without one.
type AuthError struct {
	APIError
}

func (e *AuthError) Error() string {
	return "acquire access token: " + e.APIError.Error()
}

// UploadError means a media endpoint rejected an image.
type UploadError struct {
	Endpoint string
	APIError
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %s", e.Endpoint, e.APIError.Error())
}

// SubmitError carries the raw platform code/message of a rejected draft.
type SubmitError struct {
	APIError
}

func (e *SubmitError) Error() string {
	return "create draft: " + e.APIError.Error()
}
