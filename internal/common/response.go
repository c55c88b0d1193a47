package common

import (
	"github.com/gin-gonic/gin"
)

// Fail aborts the request with a {"error": msg} body.
func Fail(c *gin.Context, httpStatus int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{"error": msg})
}
