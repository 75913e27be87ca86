package walletconnect

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
	"github.com/tidwall/gjson"
	"go.uber.org/atomic"

	"github/chapool/cross-dapp/internal/config"
	"github/chapool/cross-dapp/internal/wallet"
	"github/chapool/cross-dapp/internal/wallet/session"
	"github/chapool/cross-dapp/internal/wallet/signer"
)

const (
	notificationBuffer = 16
	notifyTimeout      = 5 * time.Second
)

var (
	errBridgeClosed = errors.New("wallet connect bridge closed")
	errNotDialed    = errors.New("wallet connect bridge not dialed")
)

// DisplayFunc shows the pairing URI to the user, usually as a QR code.
type DisplayFunc func(uri string) error

type Options struct {
	Bridge  config.WalletConnect
	Project config.Project
	// Chain is proposed to the wallet when the session is requested.
	Chain   wallet.ChainID
	Display DisplayFunc
}

// Client is a WalletConnect v1 dapp client. It is the session connector
// and forwards signing requests to the paired wallet; reads and receipt
// queries go straight to the chain.
type Client struct {
	*session.ChannelSource
	*signer.ChainReader
	signer.Recoverer

	opts Options

	handshakeTopic string
	clientID       string
	key            []byte
	nextID         atomic.Int64

	conn    *websocket.Conn
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[int64]chan gjson.Result

	// lifetime of the bridge connection, used for notifications raised by the read loop
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	connected atomic.Bool
	mu        sync.Mutex
	peerID    string
	account   common.Address
	chain     wallet.ChainID
}

func NewClient(opts Options, reader *signer.ChainReader) (*Client, error) {
	if opts.Bridge.BridgeURL == "" {
		return nil, errors.New("walletconnect.bridge_url is required")
	}

	key, err := GenerateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generate session key")
	}

	c := &Client{
		ChannelSource:  session.NewChannelSource(notificationBuffer),
		ChainReader:    reader,
		opts:           opts,
		handshakeTopic: uuid.NewString(),
		clientID:       uuid.NewString(),
		key:            key,
		pending:        make(map[int64]chan gjson.Result),
		chain:          opts.Chain,
	}
	// 每一个session的请求id从当前时间开始递增
	c.nextID.Store(time.Now().UnixNano() / 1000)

	return c, nil
}

// URI is the pairing URI the wallet scans.
func (c *Client) URI() string {
	return fmt.Sprintf("wc:%s@1?bridge=%s&key=%s",
		c.handshakeTopic, url.QueryEscape(c.opts.Bridge.BridgeURL), hex.EncodeToString(c.key))
}

// QRCode renders the pairing URI for a terminal.
func (c *Client) QRCode() (string, error) {
	return RenderQR(c.URI())
}

// RenderQR renders uri as a QR code made of terminal block characters.
func RenderQR(uri string) (string, error) {
	q, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		return "", errors.Wrap(err, "encode wallet connect qr code")
	}
	return q.ToSmallString(false), nil
}

// Dial connects to the bridge, retrying until ctx is done, and subscribes to
// this client's topic. The source becomes ready once the subscription is sent.
func (c *Client) Dial(ctx context.Context) error {
	wsURL := websocketURL(c.opts.Bridge.BridgeURL)

	b := backoff.NewExponentialBackOff()
	if c.opts.Bridge.AvailabilityPoll > 0 {
		b.InitialInterval = c.opts.Bridge.AvailabilityPoll
	}
	b.MaxElapsedTime = 0

	var conn *websocket.Conn
	err := backoff.RetryNotify(func() error {
		var err error
		conn, _, err = websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		log.Debug().Err(err).Str("bridge", wsURL).Dur("retry_in", next).Msg("Wallet connect bridge not available yet")
	})
	if err != nil {
		return errors.Wrap(err, "dial to wallet connect bridge url")
	}

	c.conn = conn
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if err := c.send(&Message{Topic: c.clientID, Type: messageSub, Silent: true}); err != nil {
		c.Close()
		return err
	}

	go c.readLoop()

	c.MarkReady()
	log.Info().Str("bridge", wsURL).Str("client_id", c.clientID).Msg("Wallet connect bridge connected")

	return nil
}

// Close drops the bridge connection. Pending requests fail with a transient error.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) Connect(ctx context.Context) error {
	if c.connected.Load() {
		return nil
	}
	if c.conn == nil {
		return errNotDialed
	}

	if err := c.Emit(ctx, session.Notification{Type: session.NotificationConnecting}); err != nil {
		return err
	}

	if c.opts.Display != nil {
		if err := c.opts.Display(c.URI()); err != nil {
			return c.abortConnect(ctx, errors.Wrap(err, "display pairing uri"))
		}
	}

	req := peer{
		PeerID: c.clientID,
		PeerMeta: clientMeta{
			Description: c.opts.Project.Description,
			URL:         c.opts.Project.URL,
			Icons:       c.opts.Project.Icons,
			Name:        c.opts.Project.Name,
		},
	}
	if n, err := c.opts.Chain.Numeric(); err == nil {
		id := n.Int64()
		req.ChainID = &id
	}

	result, err := c.call(ctx, c.handshakeTopic, "wc_sessionRequest", req)
	if err != nil {
		return c.abortConnect(ctx, err)
	}

	if !result.Get("approved").Bool() {
		return c.abortConnect(ctx, wallet.NewRemoteRejection("session rejected"))
	}

	accounts := result.Get("accounts").Array()
	if len(accounts) == 0 || !common.IsHexAddress(accounts[0].String()) {
		return c.abortConnect(ctx, wallet.NewRemoteRejection("no wallet accounts acquired"))
	}

	account := common.HexToAddress(accounts[0].String())
	chain := wallet.EIP155(result.Get("chainId").Int())

	c.mu.Lock()
	c.peerID = result.Get("peerId").String()
	c.account = account
	c.chain = chain
	c.mu.Unlock()
	c.connected.Store(true)

	log.Info().
		Str("account", account.Hex()).
		Str("chain", chain.String()).
		Str("wallet", result.Get("peerMeta.name").String()).
		Msg("Wallet connect session approved")

	return c.Emit(ctx, session.Notification{
		Type:    session.NotificationAccountConnected,
		Account: account,
		ChainID: chain.String(),
	})
}

func (c *Client) abortConnect(ctx context.Context, cause error) error {
	log.Warn().Err(cause).Msg("Wallet connect session not established")
	if err := c.Emit(ctx, session.Notification{Type: session.NotificationAccountDisconnected}); err != nil {
		log.Warn().Err(err).Msg("Failed to emit disconnect notification")
	}
	return cause
}

func (c *Client) Disconnect(ctx context.Context) error {
	if !c.connected.CompareAndSwap(true, false) {
		return nil
	}

	peerID := c.currentPeer()
	update := newRPCRequest(c.nextID.Inc(), "wc_sessionUpdate", sessionUpdate{Approved: false})
	if err := c.publish(peerID, update); err != nil {
		log.Warn().Err(err).Msg("Failed to notify wallet of session end")
	}

	log.Info().Msg("Wallet connect session closed")

	return c.Emit(ctx, session.Notification{Type: session.NotificationAccountDisconnected})
}

func (c *Client) Account(_ context.Context) (wallet.AccountInfo, error) {
	if !c.connected.Load() {
		return wallet.AccountInfo{}, wallet.ErrNotConnected
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return wallet.AccountInfo{Address: c.account, ChainID: c.chain}, nil
}

// SwitchChain asks the wallet to move to id with wallet_switchEthereumChain.
func (c *Client) SwitchChain(ctx context.Context, id wallet.ChainID) error {
	if !c.connected.Load() {
		return wallet.ErrNotConnected
	}

	n, err := id.Numeric()
	if err != nil {
		return err
	}

	if _, err := c.call(ctx, c.currentPeer(), "wallet_switchEthereumChain", map[string]string{"chainId": hexutil.EncodeBig(n)}); err != nil {
		return err
	}

	c.mu.Lock()
	c.chain = id
	c.mu.Unlock()

	return c.Emit(ctx, session.Notification{Type: session.NotificationChainChanged, ChainID: id.String()})
}

func (c *Client) SignMessage(ctx context.Context, account common.Address, message []byte, customData *wallet.CustomData) ([]byte, error) {
	if err := c.checkAccount(account); err != nil {
		return nil, err
	}
	if customData != nil && customData.Metadata != nil {
		log.Debug().Interface("custom_data", customData.Metadata).Msg("Custom data is not forwarded over wallet connect v1")
	}

	result, err := c.call(ctx, c.currentPeer(), "personal_sign", hexutil.Encode(message), account.Hex())
	if err != nil {
		return nil, err
	}
	return decodeSignature(result)
}

func (c *Client) SignTypedData(ctx context.Context, account common.Address, typedData string) ([]byte, error) {
	if err := c.checkAccount(account); err != nil {
		return nil, err
	}

	result, err := c.call(ctx, c.currentPeer(), "eth_signTypedData_v4", account.Hex(), typedData)
	if err != nil {
		return nil, err
	}
	return decodeSignature(result)
}

func (c *Client) SendTransaction(ctx context.Context, chain wallet.ChainID, from common.Address, req *wallet.TransactionRequest) (common.Hash, error) {
	if err := c.checkAccount(from); err != nil {
		return common.Hash{}, err
	}

	c.mu.Lock()
	active := c.chain
	c.mu.Unlock()
	if active != chain {
		return common.Hash{}, errors.Wrapf(wallet.ErrChainMismatch, "wallet is on %s, transaction targets %s", active, chain)
	}

	tx := transactionObject{
		From: from.Hex(),
		To:   req.To.Hex(),
		Type: hexutil.EncodeUint64(uint64(req.Kind.EnvelopeType())),
	}
	if req.Value != nil {
		tx.Value = hexutil.EncodeBig(req.Value)
	}
	if len(req.Data) > 0 {
		tx.Data = hexutil.Encode(req.Data)
	}

	result, err := c.call(ctx, c.currentPeer(), "eth_sendTransaction", tx)
	if err != nil {
		return common.Hash{}, err
	}

	raw, err := hexutil.Decode(result.String())
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, errors.Errorf("wallet returned invalid transaction hash %q", result.String())
	}
	return common.BytesToHash(raw), nil
}

func (c *Client) checkAccount(account common.Address) error {
	if !c.connected.Load() {
		return wallet.ErrNotConnected
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if account != c.account {
		return wallet.NewRemoteRejection("account " + account.Hex() + " is not the session account")
	}
	return nil
}

func (c *Client) currentPeer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerID
}

// call publishes a JSON-RPC request to topic and waits for the matching response.
func (c *Client) call(ctx context.Context, topic, method string, params ...any) (gjson.Result, error) {
	if c.conn == nil {
		return gjson.Result{}, errNotDialed
	}

	if c.opts.Bridge.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Bridge.RequestTimeout)
		defer cancel()
	}

	req := newRPCRequest(c.nextID.Inc(), method, params...)
	ch := make(chan gjson.Result, 1)

	c.pendingMu.Lock()
	c.pending[req.ID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, req.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.publish(topic, req); err != nil {
		return gjson.Result{}, err
	}

	log.Debug().Int64("id", req.ID).Str("method", method).Msg("Wallet connect request sent")

	select {
	case resp := <-ch:
		if e := resp.Get("error"); e.Exists() {
			return gjson.Result{}, errors.WithStack(wallet.NewRemoteRejection(e.Get("message").String()))
		}
		return resp.Get("result"), nil
	case <-c.ctx.Done():
		return gjson.Result{}, wallet.Transient(errBridgeClosed)
	case <-ctx.Done():
		return gjson.Result{}, errors.Wrapf(ctx.Err(), "waiting for %s", method)
	}
}

func (c *Client) publish(topic string, req *rpcRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "marshal json-rpc request")
	}

	payload, err := EncryptPayload(body, c.key)
	if err != nil {
		return err
	}

	return c.send(&Message{
		Topic:   topic,
		Type:    messagePub,
		Payload: payload.Marshal(),
		Silent:  req.silent(),
	})
}

func (c *Client) send(msg *Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.WriteMessage(websocket.TextMessage, msg.Marshal()); err != nil {
		return wallet.Transient(errors.Wrap(err, "write wallet connect message to server"))
	}
	return nil
}

func (c *Client) readLoop() {
	defer c.Close()

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				log.Warn().Err(err).Msg("Wallet connect bridge connection lost")
				c.dropSession()
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		msg, err := ParseMessage(data)
		if err != nil {
			log.Warn().Err(err).Msg("Dropping malformed bridge message")
			continue
		}
		if msg.Type != messagePub {
			continue
		}

		if err := c.send(&Message{Topic: c.clientID, Type: messageAck, Silent: true}); err != nil {
			log.Warn().Err(err).Msg("Failed to ack bridge message")
		}

		payload, err := ParsePayload(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Msg("Dropping bridge message")
			continue
		}
		body, err := DecryptPayload(payload, c.key)
		if err != nil {
			log.Warn().Err(err).Msg("Dropping undecryptable bridge message")
			continue
		}

		c.dispatch(gjson.ParseBytes(body))
	}
}

func (c *Client) dispatch(body gjson.Result) {
	if method := body.Get("method"); method.Exists() {
		if method.String() == "wc_sessionUpdate" {
			c.handleSessionUpdate(body.Get("params.0"))
			return
		}
		log.Debug().Str("method", method.String()).Msg("Ignoring wallet request")
		return
	}

	id := body.Get("id").Int()

	c.pendingMu.Lock()
	ch, ok := c.pending[id]
	c.pendingMu.Unlock()
	if !ok {
		log.Debug().Int64("id", id).Msg("Response for unknown request")
		return
	}

	// the bridge re-delivers on reconnect or a lost ack, keep the first answer
	select {
	case ch <- body:
	default:
		log.Debug().Int64("id", id).Msg("Dropping duplicate response")
	}
}

// handleSessionUpdate turns a wallet-side session change into lifecycle notifications.
func (c *Client) handleSessionUpdate(update gjson.Result) {
	if !update.Get("approved").Exists() {
		// 不应该发生
		return
	}

	if !update.Get("approved").Bool() {
		if !c.connected.CompareAndSwap(true, false) {
			return
		}
		// 用户断开链接
		log.Warn().Msg("Wallet connect session closed by wallet")
		c.emit(session.Notification{Type: session.NotificationAccountDisconnected})
		return
	}

	if !c.connected.Load() {
		return
	}

	c.mu.Lock()
	var notifications []session.Notification
	if accounts := update.Get("accounts").Array(); len(accounts) > 0 && common.IsHexAddress(accounts[0].String()) {
		if account := common.HexToAddress(accounts[0].String()); account != c.account {
			c.account = account
			notifications = append(notifications, session.Notification{Type: session.NotificationAccountChanged, Account: account})
		}
	}
	if chainID := update.Get("chainId"); chainID.Exists() {
		if chain := wallet.EIP155(chainID.Int()); chain != c.chain {
			c.chain = chain
			notifications = append(notifications, session.Notification{Type: session.NotificationChainChanged, ChainID: chain.String()})
		}
	}
	c.mu.Unlock()

	for _, n := range notifications {
		c.emit(n)
	}
}

// dropSession ends a live session whose transport is gone.
func (c *Client) dropSession() {
	if !c.connected.CompareAndSwap(true, false) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := c.Emit(ctx, session.Notification{Type: session.NotificationAccountDisconnected}); err != nil {
		log.Warn().Err(err).Msg("Dropped disconnect notification")
	}
}

func (c *Client) emit(n session.Notification) {
	if err := c.Emit(c.ctx, n); err != nil {
		log.Warn().Err(err).Str("notification", n.Type.String()).Msg("Dropped lifecycle notification")
	}
}

func decodeSignature(result gjson.Result) ([]byte, error) {
	sig, err := hexutil.Decode(result.String())
	if err != nil {
		return nil, errors.Wrap(err, "decode wallet signature")
	}
	return sig, nil
}

func websocketURL(bridge string) string {
	switch {
	case strings.HasPrefix(bridge, "https"):
		bridge = "wss" + strings.TrimPrefix(bridge, "https")
	case strings.HasPrefix(bridge, "http"):
		bridge = "ws" + strings.TrimPrefix(bridge, "http")
	}

	sep := "?"
	if strings.Contains(bridge, "?") {
		sep = "&"
	}
	return bridge + sep + "protocol=wc&version=1"
}
