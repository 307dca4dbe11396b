package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           fleetd API
// @version         1.0
// @description     HTTP API for game server fleet orchestration: slot lifecycle,
// @description     scaling and CPU core affinity.
//
// @contact.name   fleetd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
