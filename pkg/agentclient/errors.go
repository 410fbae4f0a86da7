package agentclient

import "fmt"

// AuthError means the agent rejected the API key (HTTP 401).
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// ConnectionError means the agent could not be reached or returned an
// unexpected transport-level response.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("agent at %s unreachable: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError means the agent answered but the query itself failed: the
// transport succeeded and the response carried success=false.
type QueryError struct {
	Message string
}

func (e *QueryError) Error() string { return e.Message }
