package model

import "encoding/json"

// PaymentRequest is the body of POST /pay. Drops accepts a JSON number or a
// numeric string; it is parsed strictly by the handler.
type PaymentRequest struct {
	To    string      `json:"to"`
	Drops json.Number `json:"drops"`
}

// Payment is a validated PaymentRequest.
type Payment struct {
	Destination string
	Drops       uint64
}

type PaymentResult struct {
	TxHash string `json:"txHash"`
	Drops  uint64 `json:"drops"`
}

type Balance struct {
	Address   string  `json:"address"`
	Drops     uint64  `json:"drops"`
	XRP       float64 `json:"xrp"`
	USD       float64 `json:"usd"`
	Activated bool    `json:"activated"`
}

type AddressResponse struct {
	Address string `json:"address"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
