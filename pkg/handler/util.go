package handler

import (
	"encoding/base64"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const jobKey = "jobId"

func getBindResult(c *gin.Context, in interface{}) error {
	if err := binding.JSON.Bind(c.Request, in); err != nil {
		return err
	}
	return nil
}

func decodeAudio(base64Str string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Str)
}

func handleError(c *gin.Context, code int, err string) {
	c.JSON(code, gin.H{"message": err})
}
