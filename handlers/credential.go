package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"mandir-backend/mailer"
	"mandir-backend/qr"
)

// CredentialHandler serves credential issuance and email dispatch, single
// and batch.
type CredentialHandler struct {
	issuer     *qr.Issuer
	dispatcher *mailer.Dispatcher
}

func NewCredentialHandler(issuer *qr.Issuer, dispatcher *mailer.Dispatcher) *CredentialHandler {
	return &CredentialHandler{issuer: issuer, dispatcher: dispatcher}
}

// GenerateQR issues the attendee's credential. Re-requests return the
// existing credential untouched.
func (h *CredentialHandler) GenerateQR(c *gin.Context) {
	id, ok := attendeeID(c)
	if !ok {
		return
	}

	cred, created, err := h.issuer.Issue(c, id)
	if err != nil {
		log.Warn().Int64("attendee_id", id).Err(err).Msg("qr issuance failed")
		respondError(c, err)
		return
	}

	message := "QR code generated successfully"
	if !created {
		message = "QR code already exists"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "credential": cred})
}

// GenerateAllQR issues credentials for every attendee without one.
func (h *CredentialHandler) GenerateAllQR(c *gin.Context) {
	summary, err := h.issuer.IssueAll(c)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// EmailQR emails the attendee's credential and marks it sent on confirmed
// delivery.
func (h *CredentialHandler) EmailQR(c *gin.Context) {
	id, ok := attendeeID(c)
	if !ok {
		return
	}

	if err := h.dispatcher.SendOne(c, id); err != nil {
		log.Warn().Int64("attendee_id", id).Err(err).Msg("qr email failed")
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "QR code emailed successfully with attachment!"})
}

// ResendQR re-sends the credential email regardless of the sent marker; the
// batch path never re-targets already-sent attendees, this is the explicit
// way to do it.
func (h *CredentialHandler) ResendQR(c *gin.Context) {
	h.EmailQR(c)
}

// EmailAllPending emails everyone whose credential is missing or unsent.
// Per-attendee failures come back in the summary, they never abort the
// batch.
func (h *CredentialHandler) EmailAllPending(c *gin.Context) {
	summary, err := h.dispatcher.SendAllPending(c)
	if err != nil {
		// The summary still reflects what completed before the error.
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error(), "summary": summary})
		return
	}
	c.JSON(http.StatusOK, summary)
}
