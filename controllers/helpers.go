package controllers

import (
	"strconv"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// pathID parses a uuid path parameter. On failure it records a validation
// error and returns false.
func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		_ = c.Error(apperrors.Validation("Invalid " + name + " format"))
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

// bind decodes the JSON body into dst, recording the error on failure.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(err)
		return false
	}
	return true
}
