// SPDX-License-Identifier: MIT

// hdds-demo wires two participants together over the intra-process
// transport and exchanges a handful of reliable samples on a single
// topic, end to end through discovery, matching, and delivery.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hdds-io/hdds/config"
	"github.com/hdds-io/hdds/dds"
	"github.com/hdds-io/hdds/qos"
	"github.com/hdds-io/hdds/transport/intraproc"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml/toml/json)")
	samples := flag.Int("samples", 10, "number of samples to publish")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hdds-demo: loading config:", err)
		os.Exit(1)
	}
	cfg.Discovery.SPDPPeriod = 50 * time.Millisecond
	cfg.Discovery.SPDPInitialBursts = 2
	cfg.Discovery.SPDPBurstInterval = 10 * time.Millisecond
	cfg.Discovery.LeaseTickPeriod = time.Second

	reg := intraproc.NewRegistry()
	trPub := intraproc.New(reg, "hdds-demo", intraproc.Config{Depth: 64})
	trSub := intraproc.New(reg, "hdds-demo", intraproc.Config{Depth: 64})
	defer trPub.Close()
	defer trSub.Close()

	publisher := dds.NewParticipant(cfg, trPub, log.WithField("role", "publisher"))
	subscriber := dds.NewParticipant(cfg, trSub, log.WithField("role", "subscriber"))
	defer publisher.Close()
	defer subscriber.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pump(ctx, trPub, publisher)
	go pump(ctx, trSub, subscriber)

	topicQoS := qos.Default()
	topicQoS.Reliability.Kind = qos.Reliable

	writer := publisher.CreateWriter("weather/temperature", "Temperature", topicQoS)
	reader := subscriber.CreateReader("weather/temperature", "Temperature", topicQoS, nil)

	log.Info("waiting for discovery to match the writer and reader")
	time.Sleep(300 * time.Millisecond)

	for i := 0; i < *samples; i++ {
		payload := []byte(fmt.Sprintf("reading-%d", i))
		if _, err := writer.Write(ctx, payload); err != nil {
			log.WithError(err).Warn("write failed")
		}
		time.Sleep(50 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	received := 0
	for received < *samples && time.Now().Before(deadline) {
		for _, s := range reader.Take() {
			received++
			log.WithFields(logrus.Fields{
				"payload": string(s.Payload),
				"writer":  s.Info.WriterGUID,
			}).Info("received sample")
		}
		time.Sleep(20 * time.Millisecond)
	}

	log.WithField("received", received).Info("demo finished")
}

func pump(ctx context.Context, tr *intraproc.Transport, p *dds.Participant) {
	for {
		msg, _, err := tr.Receive(ctx)
		if err != nil {
			return
		}
		_ = p.OnReceive(msg)
	}
}
