package main

// General API documentation for swaggo. Regenerate docs/ with
// `swag init -g cmd/forecastd/docs.go`.
//
// @title           forecastd API
// @version         1.0
// @description     HTTP API for Kronos price forecasts and model lifecycle management.
//
// @contact.name   forecastd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
