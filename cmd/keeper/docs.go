package main

//go:generate swag init -g cmd/keeper/main.go -o docs

// @title           Round Keeper API
// @version         0.1.0
// @description     Round lifecycle, settlement and claim relay for the betting module.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
