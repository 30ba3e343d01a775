package mq

type MessageQueue interface {
	Publish(topic string, raw []byte) error
	Subscribe(params SubscribeParams) error
}

type MQGroup struct {
	StreamName   string
	ConsumerName string
}

type MessageMeta struct {
	Topic string
}

type MessageCallback func(raw []byte, meta MessageMeta) error

type SubscribeParams struct {
	Group                  MQGroup
	Topics                 []string
	AutoACK                bool // auto acknowledge message after callback success
	IsRedeliverForCBFailed bool // whether or not redeliver message for callback return error
	Callback               MessageCallback
}
