package core

import (
	"github.com/google/uuid"
	"pkt.systems/agentpanel/schema"
)

func newExchangeID() schema.ExchangeID {
	id, err := uuid.NewRandom()
	if err != nil {
		return "exchange-unknown"
	}
	return schema.ExchangeID(id.String())
}
