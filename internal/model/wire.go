package model

import "phantom_link/internal/fault"

type (
	// ErrorBody is the JSON shape of every non-2xx devnode response.
	ErrorBody struct {
		Error string     `json:"error"`
		Kind  fault.Kind `json:"kind,omitempty"`
	}

	CountResponse struct {
		Count uint64 `json:"count"`
	}
)
