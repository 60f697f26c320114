package services

import (
	"fmt"
	"html"

	"github.com/homeswift/homeswift-api/models"
)

func bookingReceivedEmail(req *models.ServiceRequest) EmailMessage {
	return EmailMessage{
		To:      req.CustomerEmail,
		Subject: fmt.Sprintf("Booking %s received", req.RequestID),
		HTML: fmt.Sprintf(
			"<p>Hi %s,</p><p>We received your booking <strong>%s</strong> for %s at %s.</p>"+
				"<p>Total: %s. We will let you know as soon as a provider is assigned.</p>",
			html.EscapeString(req.CustomerName), req.RequestID,
			html.EscapeString(req.PreferredDate), html.EscapeString(req.PreferredTime),
			req.CustomerPaid.StringFixed(2)),
	}
}

func providerAssignedEmail(req *models.ServiceRequest) EmailMessage {
	return EmailMessage{
		To:      req.ProviderEmail,
		Subject: fmt.Sprintf("You have been assigned to %s", req.RequestID),
		HTML: fmt.Sprintf(
			"<p>Hi %s,</p><p>You have been assigned to booking <strong>%s</strong> on %s at %s.</p>"+
				"<p>Address: %s</p><p>Your payout: %s</p>",
			html.EscapeString(req.ProviderName), req.RequestID,
			html.EscapeString(req.PreferredDate), html.EscapeString(req.PreferredTime),
			html.EscapeString(req.CustomerAddress), req.ProviderPayout.StringFixed(2)),
	}
}

func customerAssignedEmail(req *models.ServiceRequest) EmailMessage {
	return EmailMessage{
		To:      req.CustomerEmail,
		Subject: fmt.Sprintf("A provider is on the way for %s", req.RequestID),
		HTML: fmt.Sprintf(
			"<p>Hi %s,</p><p>%s will handle your booking <strong>%s</strong>.</p><p>Contact: %s</p>",
			html.EscapeString(req.CustomerName), html.EscapeString(req.ProviderName),
			req.RequestID, html.EscapeString(req.ProviderPhone)),
	}
}

func notSelectedEmail(req *models.ServiceRequest, interest models.RequestInterest) EmailMessage {
	return EmailMessage{
		To:      interest.ProviderEmail,
		Subject: fmt.Sprintf("Booking %s has been assigned", req.RequestID),
		HTML: fmt.Sprintf(
			"<p>Hi %s,</p><p>Thanks for your interest in booking <strong>%s</strong>. "+
				"Another provider was selected this time.</p>",
			html.EscapeString(interest.ProviderName), req.RequestID),
	}
}

func completionEmail(req *models.ServiceRequest, to, name string) EmailMessage {
	return EmailMessage{
		To:      to,
		Subject: fmt.Sprintf("Booking %s completed", req.RequestID),
		HTML: fmt.Sprintf(
			"<p>Hi %s,</p><p>Booking <strong>%s</strong> is complete. You can now leave a review.</p>",
			html.EscapeString(name), req.RequestID),
	}
}
