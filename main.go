/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
// @title           Procurement Gin API
// @version         1.0
// @description     Purchase request two-level approval API server

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token from Keycloak
package main

import "github.com/mautops/procurement-gin/cmd"

func main() {
	cmd.Execute()
}
