// Package gochannel keeps definition lifecycle events inside the API process.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	// Events queued per subscriber before Publish starts waiting on it.
	outputBuffer     = 256
	testOutputBuffer = 16
)

// CreateChannel returns one in-memory pub/sub as both publisher and subscriber. Events
// published while nobody subscribes are dropped; saved drafts and published versions
// remain in persistence regardless.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: outputBuffer}, logger)

	return pubSub, pubSub, nil
}

// CreateTestChannel keeps every event and makes Publish wait for the subscriber's ack,
// so a test observes the event once Sessions.Publish has returned.
func CreateTestChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            testOutputBuffer,
			Persistent:                     true,
			BlockPublishUntilSubscriberAck: true,
		},
		logger,
	)

	return pubSub, pubSub, nil
}
