package serverutils

// Response is the envelope every REST handler returns.
type Response[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func SuccessResponse[T any](message string, data T) Response[T] {
	return Response[T]{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func FailureResponse(message string) Response[any] {
	return Response[any]{
		Success: false,
		Message: message,
	}
}
