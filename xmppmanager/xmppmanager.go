/*
 * XmppManager: Manages XMPP connection and
 * offers xmppMessageChannel for sending various types of XMPP Messages:
 * 		- XmppTextMessage or
 * 		- XmppGifMessage
 */

package xmppmanager

import (
	"context"
	"fmt"
	"strconv"

	"gosrc.io/xmpp"
	"gosrc.io/xmpp/stanza"

	"thomas-leister.de/greenhouse/configmanager"
	"thomas-leister.de/greenhouse/log"
)

type XmppTextMessage string

type XmppGifMessage string

type XmppInMessage struct {
	From string
	Body string
}

type XmppClient struct {
	Host                  string
	Port                  int
	Username              string
	Password              string
	Recipients            []string
	XmppMessageOutChannel chan interface{}
	XmppMessageInChannel  chan XmppInMessage
}

func (x *XmppClient) HandleXmppMessage(s xmpp.Sender, p stanza.Packet) {
	msg, ok := p.(stanza.Message)
	if !ok {
		log.Debugf("XMPP: Ignoring packet: %T", p)
		return
	}

	// Just feed messages with Body into messenger responder. Not "typing" notifications etc.
	if msg.Body == "" {
		return
	}
	select {
	case x.XmppMessageInChannel <- XmppInMessage{From: msg.From, Body: msg.Body}:
	default:
		log.Warnf("XMPP: Responder busy, dropping message from %s", msg.From)
	}
}

func (x *XmppClient) XmppErrorHandler(err error) {
	log.Errorf("XMPP: %v", err)
}

func (x *XmppClient) Init(config *configmanager.Config) error {
	x.Host = config.Xmpp.Host
	x.Port = config.Xmpp.Port
	x.Username = config.Xmpp.Username
	x.Password = config.Xmpp.Password
	x.Recipients = config.Xmpp.Recipients

	return nil
}

// BuildStanza converts an outgoing message into a message stanza without recipient
func BuildStanza(xmppMessage interface{}) (stanza.Message, error) {
	switch m := xmppMessage.(type) {
	case XmppTextMessage:
		return stanza.Message{Body: string(m)}, nil

	case XmppGifMessage:
		return stanza.Message{
			Body: string(m),
			Extensions: []stanza.MsgExtension{
				stanza.OOB{
					URL:  string(m),
					Desc: "GIF",
				},
			},
		}, nil

	default:
		return stanza.Message{}, fmt.Errorf("unknown message type %T. Send one of XmppTextMessage or XmppGifMessage", xmppMessage)
	}
}

// RunXMPPClient connects and sends every message from the out channel to all recipients until ctx is cancelled
func (x *XmppClient) RunXMPPClient(ctx context.Context, xmppMessageOutChannel chan interface{}, xmppMessageInChannel chan XmppInMessage) error {
	x.XmppMessageOutChannel = xmppMessageOutChannel
	x.XmppMessageInChannel = xmppMessageInChannel

	xmppClientConfig := xmpp.Config{
		TransportConfiguration: xmpp.TransportConfiguration{
			Address: x.Host + ":" + strconv.Itoa(x.Port),
		},
		Jid:          x.Username,
		Credential:   xmpp.Password(x.Password),
		StreamLogger: nil,
		Insecure:     false,
	}

	router := xmpp.NewRouter()
	router.HandleFunc("message", x.HandleXmppMessage)

	client, err := xmpp.NewClient(&xmppClientConfig, router, x.XmppErrorHandler)
	if err != nil {
		return fmt.Errorf("could not create xmpp client: %w", err)
	}

	// If you pass the client to a connection manager, it will handle the reconnect policy
	// for you automatically.
	cm := xmpp.NewStreamManager(client, nil)
	go func() {
		if err := cm.Run(); err != nil {
			log.Errorf("XMPP: Stream manager stopped: %v", err)
		}
	}()
	defer cm.Stop()

	// Wait for a new message to send (listen on channel)
	for {
		var xmppMessage interface{}
		select {
		case <-ctx.Done():
			return nil
		case xmppMessage = <-xmppMessageOutChannel:
		}

		xmppMessageStanza, err := BuildStanza(xmppMessage)
		if err != nil {
			log.Errorf("XMPP: %v", err)
			continue
		}

		// For each recipient: Set recipient and send message
		for _, recipient := range x.Recipients {
			xmppMessageStanza.Attrs = stanza.Attrs{To: recipient, Type: stanza.MessageTypeChat}

			if err := client.Send(xmppMessageStanza); err != nil {
				log.Errorf("XMPP: Could not send stanza to %s: %v", recipient, err)
			}
		}
	}
}
