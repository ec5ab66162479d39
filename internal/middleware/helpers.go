// internal/middleware/helpers.go
package middleware

import "github.com/gin-gonic/gin"

// MustGetOperatorID gets operator ID from context or panics
func MustGetOperatorID(c *gin.Context) string {
	operatorID, exists := GetOperatorID(c)
	if !exists {
		panic("operator_id not found in context")
	}
	return operatorID
}

// MustGetJTI gets JTI from context or panics
func MustGetJTI(c *gin.Context) string {
	jti, exists := GetJTI(c)
	if !exists {
		panic("jti not found in context")
	}
	return jti
}

// GetProvider returns the sign-in provider of the session (local, google, facebook).
func GetProvider(c *gin.Context) string {
	provider, _ := getString(c, ctxProvider)
	return provider
}
