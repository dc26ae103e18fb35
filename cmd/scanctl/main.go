package main

import (
	"encoding/json"
	"flag"
	"os"

	"github.com/abenezer/gymcard-services/internal/comm"
	nats "github.com/abenezer/gymcard-services/internal/nats"
	log "github.com/sirupsen/logrus"
)

// scanctl publishes scan messages on the reader side channel, standing in
// for the physical bridge during development.
func main() {
	var (
		tag     = flag.String("card", "", "rfid tag to publish")
		checkin = flag.Bool("checkin", false, "publish on the check-in topic instead of the pairing topic")
	)
	flag.Parse()

	if *tag == "" {
		log.Error("missing -card")
		flag.Usage()
		os.Exit(1)
	}

	n, err := nats.Connect()
	if err != nil {
		log.Fatalf("unable to connect to NATS server: %v", err)
	}
	defer n.Conn.Close()

	topic := comm.TopicPairScan
	if *checkin {
		topic = comm.TopicCheckinScan
	}

	payload, err := json.Marshal(comm.ScanMessage{CardID: *tag})
	if err != nil {
		log.Fatalf("unable to encode scan message: %v", err)
	}

	if err := n.Conn.Publish(topic, payload); err != nil {
		log.Fatalf("unable to publish scan: %v", err)
	}
	if err := n.Conn.Flush(); err != nil {
		log.Fatalf("unable to flush: %v", err)
	}

	log.Infof("published scan %s to %s", *tag, topic)
}
