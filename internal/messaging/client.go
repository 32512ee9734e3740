package messaging

import (
	"context"

	"vehicle-remote/internal/config"
	"vehicle-remote/internal/logger"
)

// Client is the method set shared by every transport.
type Client interface {
	OnStatus(fn func(raw []byte))
	Init(ctx context.Context) error
	Start(ctx context.Context) error
	Stop() error
	SendCommand(ctx context.Context, id uint8, payload []byte) error
}

var (
	_ Client = (*RedisClient)(nil)
	_ Client = (*MQTTClient)(nil)
	_ Client = (*SerialClient)(nil)
	_ Client = (*SimClient)(nil)
)

// NewClient builds the transport selected by t.Kind.
func NewClient(t config.TransportConfig, l *logger.Logger) Client {
	switch t.Kind {
	case config.TransportMQTT:
		return NewMQTTClient(MQTTOptions{
			Broker:         t.MQTT.Broker,
			ClientID:       t.MQTT.ClientID,
			Username:       t.MQTT.Username,
			Password:       t.MQTT.Password,
			CommandTopic:   t.MQTT.CommandTopic,
			StatusTopic:    t.MQTT.StatusTopic,
			QoS:            t.MQTT.QoS,
			ConnectTimeout: t.CommandTimeout,
		}, l)
	case config.TransportSerial:
		return NewSerialClient(SerialOptions{
			Device:   t.Serial.Device,
			BaudRate: t.Serial.BaudRate,
		}, l)
	case config.TransportSim:
		return NewSimClient(SimOptions{ParkStep: t.Sim.ParkStep}, l)
	default:
		return NewRedisClient(RedisOptions{
			Addr:          t.Redis.Addr,
			Password:      t.Redis.Password,
			DB:            t.Redis.DB,
			CommandKey:    t.Redis.CommandKey,
			AckKey:        t.Redis.AckKey,
			StatusChannel: t.Redis.StatusChannel,
			AckTimeout:    t.Redis.AckTimeout,
		}, l)
	}
}
