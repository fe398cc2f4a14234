package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rhordoan/logpulse/pkg/datasource"
	"github.com/rhordoan/logpulse/pkg/models"
)

func (s *Server) listDataSources(c *gin.Context) {
	rows, err := s.datasources.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data_sources": rows})
}

func (s *Server) getDataSource(c *gin.Context) {
	row, err := s.datasources.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, datasource.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "data source not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) createDataSource(c *gin.Context) {
	var ds models.DataSource
	if err := c.ShouldBindJSON(&ds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := s.datasources.Create(c.Request.Context(), ds)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateDataSource(c *gin.Context) {
	var ds models.DataSource
	if err := c.ShouldBindJSON(&ds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ds.ID = c.Param("id")
	updated, err := s.datasources.Update(c.Request.Context(), ds)
	if errors.Is(err, datasource.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "data source not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteDataSource(c *gin.Context) {
	err := s.datasources.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, datasource.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "data source not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
