package domain

// EventPaySuccess is the routing key for settlement success events.
const EventPaySuccess = "pay.success"

type PaySuccess struct {
	BizOrderNo string `json:"bizOrderNo"`
}
