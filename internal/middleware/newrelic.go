package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicAttributes annotates the nrgin transaction with the principal and
// route. It must run after nrgin.Middleware and RequirePrincipal.
func NewRelicAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}
		if p := Principal(c); p != "" {
			txn.AddAttribute("principal_id", p)
		}
		if id := c.Param("id"); id != "" {
			txn.AddAttribute("order_id", id)
		}

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
