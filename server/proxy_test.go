package server

import (
	"context"
	"fmt"
	"net"

	. "github.com/bsm/ginkgo/v2"
	. "github.com/bsm/gomega"
	"github.com/sourcegraph/conc/pool"

	"github.com/awinterman/anarchoresp/protocol"
	"github.com/awinterman/anarchoresp/protocol/kind"
)

func listen(ctx context.Context, h *Handler) *Server {
	srv, err := New(ctx, &Config{Address: "127.0.0.1:0"}, h.ServeConn)
	Expect(err).NotTo(HaveOccurred())
	go func() { _ = srv.Serve(ctx) }()
	return srv
}

func dial(srv *Server) *protocol.Conn {
	nc, err := net.Dial("tcp", srv.Addr().String())
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(nc.Close)
	return protocol.NewConnection(nc)
}

var _ = Describe("Proxy", func() {
	var (
		ctx          context.Context
		cancel       context.CancelFunc
		upstreamAddr string
		proxy        *Proxy
		front        *Server
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		upstreamAddr = listen(ctx, &Handler{}).Addr().String()

		var err error
		proxy, err = NewProxy(upstreamAddr, 2, protocol.ConnOptions{})
		Expect(err).NotTo(HaveOccurred())

		front = listen(ctx, &Handler{Upstream: proxy})
	})

	AfterEach(func() {
		cancel()
		proxy.Close()
	})

	It("relays upstream replies", func() {
		conn := dial(front)

		resp, err := conn.RoundTrip(protocol.NewCommand("PING"))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Str).To(Equal("PONG"))

		resp, err = conn.RoundTrip(protocol.NewCommand("ECHO", "through the proxy"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(resp.Bulk)).To(Equal("through the proxy"))
	})

	It("relays upstream errors as replies", func() {
		conn := dial(front)

		resp, err := conn.RoundTrip(protocol.NewCommand("GET", "k"))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Kind).To(Equal(kind.Error))
		Expect(resp.Str).To(Equal("ERR unknown command 'GET'"))
	})

	It("answers QUIT without the upstream", func() {
		conn := dial(front)

		resp, err := conn.RoundTrip(protocol.NewCommand("QUIT"))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Str).To(Equal("OK"))

		_, err = conn.Read()
		Expect(err).To(HaveOccurred())
	})

	It("serves many clients over a bounded pool", func() {
		p := pool.New().WithErrors()
		for i := 0; i < 20; i++ {
			p.Go(func() error {
				nc, err := net.Dial("tcp", front.Addr().String())
				if err != nil {
					return err
				}
				defer nc.Close()
				conn := protocol.NewConnection(nc)
				for j := 0; j < 10; j++ {
					want := fmt.Sprintf("%d-%d", i, j)
					resp, err := conn.RoundTrip(protocol.NewCommand("ECHO", want))
					if err != nil {
						return err
					}
					if string(resp.Bulk) != want {
						return fmt.Errorf("got %v want %q", resp, want)
					}
				}
				return nil
			})
		}
		Expect(p.Wait()).To(Succeed())
	})

	It("keeps each client's connection state to itself", func() {
		a := dial(front)
		resp, err := a.RoundTrip(protocol.NewCommand("HELLO", "3"))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Kind).To(Equal(kind.Map))

		b := dial(front)
		resp, err = b.RoundTrip(protocol.NewCommand("HELLO"))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Kind).To(Equal(kind.Array))

		resp, err = a.RoundTrip(protocol.NewCommand("HELLO"))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Kind).To(Equal(kind.Map))
	})

	It("resets a reused upstream connection", func() {
		single, err := NewProxy(upstreamAddr, 1, protocol.ConnOptions{})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(single.Close)
		srv := listen(ctx, &Handler{Upstream: single})

		nc, err := net.Dial("tcp", srv.Addr().String())
		Expect(err).NotTo(HaveOccurred())
		a := protocol.NewConnection(nc)
		resp, err := a.RoundTrip(protocol.NewCommand("HELLO", "3"))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Kind).To(Equal(kind.Map))
		Expect(string(resp.Pairs[3].Key.Bulk)).To(Equal("id"))
		id := resp.Pairs[3].Value.Int
		Expect(nc.Close()).To(Succeed())

		// b waits for a's session to hand the only connection back
		b := dial(srv)
		resp, err = b.RoundTrip(protocol.NewCommand("HELLO"))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Kind).To(Equal(kind.Array))
		Expect(resp.Elems).To(HaveLen(14))
		Expect(resp.Elems[5].Int).To(Equal(int64(2)))
		Expect(resp.Elems[7].Int).To(Equal(id))
	})

	It("reports an unreachable upstream", func() {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr := l.Addr().String()
		Expect(l.Close()).To(Succeed())

		dead, err := NewProxy(addr, 1, protocol.ConnOptions{})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(dead.Close)

		conn := dial(listen(ctx, &Handler{Upstream: dead}))
		resp, err := conn.RoundTrip(protocol.NewCommand("PING"))
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Kind).To(Equal(kind.Error))
		Expect(resp.Str).To(HavePrefix("ERR upstream: "))
	})
})
