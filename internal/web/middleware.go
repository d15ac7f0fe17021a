package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"proteindomains.org/protdom/internal/data"
)

const HEADER_PREFIX string = "Bearer "

// RequireAPIKey checks the bearer token against the configured bcrypt
// hash. Without a configured hash the API is open.
func (app *application) RequireAPIKey() gin.HandlerFunc {
	keyHash := viper.GetString("server.api_key_hash")

	return func(c *gin.Context) {
		if keyHash == "" {
			c.Next()
			return
		}

		// Let caches know that the response will vary depending on the Authorization header
		c.Writer.Header().Add("Vary", "Authorization")

		key, err := getToken(c)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		if err = bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Next()
	}
}

func getToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", data.ErrInvalidCredentials
	}
	if !strings.HasPrefix(header, HEADER_PREFIX) {
		return "", data.ErrInvalidCredentials
	}

	return strings.TrimPrefix(header, HEADER_PREFIX), nil
}
