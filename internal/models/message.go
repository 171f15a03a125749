package models

// OutboundMessage is a single SMS the platform wants delivered. The struct
// is treated as immutable once dispatch begins; the engine derives country,
// sender id and cost without mutating it.
type OutboundMessage struct {
	// To is the destination phone number, ideally E.164 but accepted in
	// the loose formats the CRUD frontend lets through.
	To string `json:"to"`
	// From is the sender id the user asked for. It is subject to approval
	// and may be overridden by the resolver.
	From string `json:"from,omitempty"`
	// Text is the message body.
	Text string `json:"text"`
	// CampaignID optionally links the message back to a campaign record.
	CampaignID string `json:"campaignId,omitempty"`
}
