package ingest

import (
	"context"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"postureguard/internal/config"
	"postureguard/internal/model"
)

func StartMQTT(ctx context.Context, cfg *config.Manager, out chan<- model.Reading, logger *slog.Logger) {
	current := cfg.Get().Ingest.MQTT
	if !current.Enabled {
		if logger != nil {
			logger.Info("mqtt ingest disabled")
		}
		return
	}
	if logger != nil {
		logger.Info("mqtt ingest enabled", "broker", current.Broker, "topics", current.Topics)
	}

	opts := mqtt.NewClientOptions().
		AddBroker(current.Broker).
		SetClientID(current.ClientID).
		SetUsername(current.Username).
		SetPassword(current.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		reading, err := ParseReading(msg.Payload(), cfg.Get().Ingest.DefaultSessionID)
		if err != nil {
			if logger != nil {
				logger.Warn("mqtt reading parse error", "topic", msg.Topic(), "err", err)
			}
			return
		}
		reading.Source = "mqtt"
		SendNonBlocking(ctx, out, reading, logger)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		for _, topic := range current.Topics {
			token := client.Subscribe(topic, current.QOS, handler)
			token.Wait()
			if err := token.Error(); err != nil && logger != nil {
				logger.Error("mqtt subscribe error", "topic", topic, "err", err)
			}
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if logger != nil {
			logger.Warn("mqtt connection lost", "err", err)
		}
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil && logger != nil {
			logger.Error("mqtt connect error", "broker", current.Broker, "err", err)
		}
		<-ctx.Done()
		client.Disconnect(250)
	}()
}
