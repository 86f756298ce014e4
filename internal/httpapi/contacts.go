package httpapi

import (
	"net/http"

	"levlyfy/internal/contacts"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListContacts(c *gin.Context) {
	list, err := h.Contacts.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contacts": list})
}

func (h Handlers) GetContact(c *gin.Context) {
	ct, err := h.Contacts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

func (h Handlers) CreateContact(c *gin.Context) {
	var in contacts.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ct, err := h.Contacts.Create(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ct)
}

func (h Handlers) UpdateContact(c *gin.Context) {
	var in contacts.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ct, err := h.Contacts.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ct)
}

func (h Handlers) DeleteContact(c *gin.Context) {
	if err := h.Contacts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
