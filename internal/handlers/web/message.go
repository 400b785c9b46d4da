package web

const (
	MsgInvalidRequest        = "Invalid request. Please try again."
	MsgLoginWrongCredentials = "Invalid email or password."
	MsgMissingCredentials    = "Email and password are required."
	MsgInvalidRedirectURI    = "The redirect_uri parameter must be an absolute http(s) URL."
	MsgMissingClientID       = "The client_id parameter is required."
	MsgUnsupportedResponse   = "Only response_type=code is supported."
)
