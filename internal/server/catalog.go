package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) listPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.catalogs.Get().Plans()})
}

func (s *Server) listServices(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.catalogs.Get().Services()})
}
