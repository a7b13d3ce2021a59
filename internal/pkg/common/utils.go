package common

import (
	"encoding/base64"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateID 生成不含連字號的 UUID，作為 session ID
func GenerateID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// EncodeBase64 標準 base64 編碼
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// WriteError 寫入錯誤響應，非 CustomError 一律視為內部錯誤
func WriteError(c *gin.Context, err error, withDetails bool) {
	ce, ok := AsCustomError(err)
	if !ok {
		ce = ErrInternalError.Wrap(err)
	}
	c.AbortWithStatusJSON(ce.Status, ce.Response(withDetails))
}
