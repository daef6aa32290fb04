package analysiscall

import (
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"sync"
	"time"

	"deeptrace-backend-controller/utils"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

var ErrClosed = errors.New("request broker has been closed")

/*
MQConnectionConfig RabbitMQ 连接参数。

	User、Pwd 为 broker 分配的账号；
	Host、Port 为 broker 地址，Port 为空时使用 5672；
*/
type MQConnectionConfig struct {
	User string
	Pwd  string
	Host string
	Port string
}

func (c *MQConnectionConfig) ToURL() string {
	port := c.Port
	if len(port) == 0 {
		port = "5672"
	}
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(c.User, c.Pwd),
		Host:   net.JoinHostPort(c.Host, port),
		Path:   "/",
	}
	return u.String()
}

func GenerateTestMQConnectionConfig() MQConnectionConfig {
	return MQConnectionConfig{
		User: "guest",
		Pwd:  "guest",
		Host: "localhost",
		Port: "5672",
	}
}

/*
requestBroker 在一个持久化队列上收发抽取请求。

	发布复用同一个 channel，由 publishLock 串行化；
	消费者 prefetch 为 1，回调返回后才确认，因此同一时刻只有一个请求在执行；
	无法解码的消息直接丢弃，回调失败的消息也不重新入队，失败的线索由下次运行按状态处理；
*/
type requestBroker struct {
	logger *logrus.Logger
	queue  string
	conn   *amqp.Connection

	publishLock sync.Mutex
	publishCh   *amqp.Channel

	stop      chan struct{}
	consuming sync.WaitGroup
	closeOnce sync.Once
	closed    bool
}

func dialRequestBroker(config *MQConnectionConfig, queue string, logger *logrus.Logger) (*requestBroker, error) {
	conn, err := amqp.DialConfig(config.ToURL(), amqp.Config{
		Heartbeat: 10 * time.Second,
		Properties: amqp.Table{
			"connection_name": "deeptrace-" + queue,
		},
	})
	if err != nil {
		return nil, utils.WrapErrorf(err, "dial rabbitmq [%s:%s] fail", config.Host, config.Port)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, utils.WrapError(err, "create channel fail")
	}

	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = conn.Close()
		return nil, utils.WrapErrorf(err, "declare queue [%s] fail", queue)
	}

	return &requestBroker{
		logger:    logger,
		queue:     queue,
		conn:      conn,
		publishCh: ch,
		stop:      make(chan struct{}),
	}, nil
}

func (b *requestBroker) Publish(req RequestSchema) error {
	body, err := json.Marshal(req)
	if err != nil {
		return utils.WrapError(err, "json marshal fail")
	}

	b.publishLock.Lock()
	defer b.publishLock.Unlock()

	if b.closed {
		return ErrClosed
	}

	err = b.publishCh.Publish(
		"",      // exchange
		b.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    req.RequestID,
			Timestamp:    req.RequestedAt,
			Body:         body,
		})
	return utils.WrapErrorf(err, "publish request [%s] fail", req.RequestID)
}

func decodeRequest(body []byte) (RequestSchema, error) {
	var req RequestSchema
	if len(body) == 0 {
		return req, errEmptyBody
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, utils.WrapErrorf(err, "json unmarshal fail with [%s]", string(body))
	}
	return req, nil
}

// Consume 启动唯一的消费者，在后台逐条调用 handle，直到 Close。
func (b *requestBroker) Consume(handle func(req RequestSchema) error) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return utils.WrapError(err, "create channel fail")
	}

	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return utils.WrapError(err, "set qos fail")
	}

	deliveries, err := ch.Consume(
		b.queue,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return utils.WrapError(err, "create delivery-chan fail")
	}

	b.consuming.Add(1)
	go func() {
		defer b.consuming.Done()
		defer ch.Close()

		for {
			select {
			case <-b.stop:
				b.logger.Infof("stop consuming queue [%s]", b.queue)
				return
			case msg, alive := <-deliveries:
				if !alive {
					b.logger.Warnf("delivery channel of queue [%s] closed", b.queue)
					return
				}
				b.deliver(&msg, handle)
			}
		}
	}()

	return nil
}

func (b *requestBroker) deliver(msg *amqp.Delivery, handle func(req RequestSchema) error) {
	req, err := decodeRequest(msg.Body)
	if err != nil {
		b.logger.WithError(err).Errorf("drop malformed message [%s] of queue [%s]", msg.MessageId, b.queue)
		if err := msg.Reject(false); err != nil {
			b.logger.WithError(err).Errorf("reject message of queue [%s] fail", b.queue)
		}
		return
	}

	b.logger.Debugf("receive request [%s] requested at %s", req.RequestID, req.RequestedAt)
	if err := handle(req); err != nil {
		b.logger.WithError(err).Errorf("handle request [%s] fail", req.RequestID)
	}

	if err := msg.Ack(false); err != nil {
		b.logger.WithError(err).Errorf("ack request [%s] fail", req.RequestID)
	}
}

// Close 停止消费并等待正在执行的请求结束，重复调用返回 ErrClosed。
func (b *requestBroker) Close() error {
	err := ErrClosed
	b.closeOnce.Do(func() {
		close(b.stop)
		b.consuming.Wait()

		b.publishLock.Lock()
		b.closed = true
		_ = b.publishCh.Close()
		b.publishLock.Unlock()

		err = b.conn.Close()
	})
	return err
}
