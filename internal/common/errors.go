package common

import "errors"

// Repository errors. Services translate them into autherr kinds.
var (
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")
)
