package wa

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	// sqlite driver for the device store
	_ "modernc.org/sqlite"
)

// Client owns the whatsmeow connection and its sqlite device store.
type Client struct {
	wa        *whatsmeow.Client
	container *sqlstore.Container
	logger    *slog.Logger
}

// Open prepares the device store at storePath and creates the client.
// logLevel is a whatsmeow level such as "INFO" or "DEBUG".
func Open(ctx context.Context, storePath, logLevel string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(storePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", storePath)
	container, err := sqlstore.New(ctx, "sqlite", dsn, waLog.Stdout("Database", logLevel, false))
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("load device: %w", err)
	}

	return &Client{
		wa:        whatsmeow.NewClient(device, waLog.Stdout("Client", logLevel, false)),
		container: container,
		logger:    logger.With("component", "wa"),
	}, nil
}

// Start registers the bridge and connects. An unpaired device logs QR codes
// until it is linked.
func (c *Client) Start(ctx context.Context, bridge *Bridge) error {
	c.wa.AddEventHandler(func(evt any) {
		switch v := evt.(type) {
		case *events.Message:
			bridge.HandleMessage(ctx, v)
		case *events.Connected:
			c.logger.Info("whatsapp connected")
		case *events.LoggedOut:
			c.logger.Warn("whatsapp logged out", "reason", v.Reason)
		}
	})

	if c.wa.Store.ID != nil {
		return c.wa.Connect()
	}

	qrChan, err := c.wa.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("qr channel: %w", err)
	}
	if err := c.wa.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	go func() {
		for item := range qrChan {
			switch item.Event {
			case "code":
				c.logger.Info("scan QR code to link whatsapp", "code", item.Code)
			default:
				c.logger.Info("whatsapp pairing event", "event", item.Event)
			}
		}
	}()
	return nil
}

// SendText sends a plain conversation message.
func (c *Client) SendText(ctx context.Context, to types.JID, text string) error {
	_, err := c.wa.SendMessage(ctx, to, &waE2E.Message{Conversation: proto.String(text)})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Close disconnects and releases the device store.
func (c *Client) Close() error {
	c.wa.Disconnect()
	return c.container.Close()
}
