package middlewares

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Extensions accepted for avatar uploads. Deliberately lowercase-only:
// the original filter was case-sensitive and that behavior is preserved.
var avatarExtensions = []string{".jpg", ".jpeg", ".png"}

// AvatarUpload enforces the upload constraints before the handler runs:
// a single multipart file field, at most maxBytes of image data, filename
// extension on the allow-list. Accepted bytes are stashed on the context
// under CtxUpload. Rejections answer 400 with the reason.
func AvatarUpload(field string, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Bound the whole body read; the slack covers multipart framing.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+64<<10)

		fh, err := c.FormFile(field)

		if err != nil {
			rejectUpload(c, "A single file field %q is required and must be at most 1000000 bytes.", field)
			return
		}

		if fh.Size > maxBytes {
			rejectUpload(c, "File is too large; the limit is 1000000 bytes.")
			return
		}

		if !allowedAvatarExt(fh.Filename) {
			rejectUpload(c, "Please upload an image (.jpg, .jpeg or .png).")
			return
		}

		f, err := fh.Open()

		if err != nil {
			rejectUpload(c, "Could not read the uploaded file.")
			return
		}

		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxBytes))

		if err != nil {
			rejectUpload(c, "Could not read the uploaded file.")
			return
		}

		c.Set(CtxUpload, data)

		c.Next()
	}
}

func allowedAvatarExt(filename string) bool {
	for _, ext := range avatarExtensions {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}

	return false
}

func rejectUpload(c *gin.Context, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error": gin.H{
			"code":    "invalid_upload",
			"message": msg,
		},
	})
}
