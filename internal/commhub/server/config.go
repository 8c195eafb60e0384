package server

import "github.com/autopeer-io/commhub/pkg/options"

type Config struct {
	HttpOptions *options.HttpOptions
	GrpcOptions *options.GrpcOptions
}
