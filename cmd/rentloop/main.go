package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/joho/godotenv"

	"rentloop/api"
	"rentloop/booking"
	"rentloop/chat"
	"rentloop/domain"
	"rentloop/internal"
	"rentloop/search"
	"rentloop/session"
	"rentloop/ws"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "rentloop: %v\n", err)
	}
	os.Exit(code)
}

// run wires the whole client: config, logger, REST client, session, booking
// service, chat engine and the interactive loop. Returning rather than
// exiting keeps defers working and the wiring testable.
func run() (int, error) {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	level, err := internal.ParseLogLevel(config.LogLevel)
	if err != nil {
		return exitConfig, err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client := api.NewClient(config.APIBaseURL, config.RequestTimeout, log)
	sess := session.New(client, log)
	client.SetCredentialSource(sess)
	client.SetUnauthorizedHook(sess.Logout)

	dialer := ws.NewDialer(config.SocketBaseURL, sess, log)
	engine := chat.NewEngine(client, dialer, log, config.RestartInterval, config.SinkTimeout)
	sess.AddListener(engine)

	index, err := search.NewIndex(log, config.SearchLimit)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		_ = index.Close()
	}()
	engine.AddSink(index)

	bookings := booking.NewService(client, sess, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer sess.Logout()

	color.Cyan.Println("rentloop: type 'help' for commands, Ctrl+C to quit")

	app := &app{sess: sess, engine: engine, bookings: bookings, index: index, log: log}
	return app.loop(ctx)
}

type app struct {
	sess     *session.Session
	engine   *chat.Engine
	bookings *booking.Service
	index    *search.Index
	log      *slog.Logger
}

func (a *app) loop(ctx context.Context) (int, error) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if err := a.handle(ctx, strings.Fields(line)); err != nil {
				color.Red.Println(err)
			}
		}
	}
}

func (a *app) handle(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return nil
	}

	switch args[0] {
	case "help":
		printHelp()

	case "login":
		if len(args) != 3 {
			return fmt.Errorf("usage: login <email> <password>")
		}
		identity, err := a.sess.Login(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		color.Green.Printf("logged in as %s\n", identity.Username)

	case "register":
		if len(args) < 5 {
			return fmt.Errorf("usage: register <username> <email> <password> <full name...>")
		}
		identity, err := a.sess.Register(ctx, domain.Registration{
			Username: args[1],
			Email:    args[2],
			Password: args[3],
			FullName: strings.Join(args[4:], " "),
		})
		if err != nil {
			return err
		}
		color.Green.Printf("registered and logged in as %s\n", identity.Username)

	case "resume":
		if len(args) != 2 {
			return fmt.Errorf("usage: resume <token>")
		}
		identity, err := a.sess.Resume(ctx, args[1])
		if err != nil {
			return err
		}
		color.Green.Printf("session resumed for %s\n", identity.Username)

	case "whoami":
		identity, ok := a.sess.Current()
		if !ok {
			return fmt.Errorf("not logged in")
		}
		fmt.Printf("%s (%s) id=%s\n", identity.Username, identity.Email, identity.ID)

	case "profile":
		if len(args) < 2 {
			return fmt.Errorf("usage: profile <full name...>")
		}
		updated, err := a.sess.UpdateProfile(ctx, domain.ProfileUpdate{FullName: strings.Join(args[1:], " ")})
		if err != nil {
			return err
		}
		color.Green.Printf("profile updated: %s\n", updated.FullName)

	case "logout":
		a.sess.Logout()

	case "send":
		if len(args) < 3 {
			return fmt.Errorf("usage: send <user-id> <text>")
		}
		_, err := a.engine.Send(ctx, args[1], strings.Join(args[2:], " "))
		return err

	case "open":
		if len(args) != 2 {
			return fmt.Errorf("usage: open <user-id>")
		}
		if err := a.engine.Open(ctx, args[1]); err != nil {
			return err
		}
		printMessages(a.engine.Messages(args[1]))

	case "close":
		a.engine.CloseConversation()

	case "chats":
		printConversations(a.engine)

	case "read":
		if len(args) != 2 {
			return fmt.Errorf("usage: read <message-id>")
		}
		return a.engine.MarkRead(ctx, args[1])

	case "find":
		if len(args) < 2 {
			return fmt.Errorf("usage: find <terms>")
		}
		hits, err := a.index.Search(ctx, strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		for _, hit := range hits {
			fmt.Printf("%s %s -> %s: %s\n", hit.MessageID, hit.SenderID, hit.ReceiverID, hit.Content)
		}

	case "bookings":
		if err := a.bookings.Refresh(ctx); err != nil {
			return err
		}
		printBookings(a.bookings.All())

	case "book":
		if len(args) != 5 {
			return fmt.Errorf("usage: book <item-id> <start yyyy-mm-dd> <end yyyy-mm-dd> <price-per-day>")
		}
		req, err := parseBookingRequest(args[1:])
		if err != nil {
			return err
		}
		created, err := a.bookings.Create(ctx, req)
		if err != nil {
			return err
		}
		color.Green.Printf("booking %s created, total %.2f\n", created.ID, created.TotalAmount)

	case "move":
		if len(args) < 3 {
			return fmt.Errorf("usage: move <booking-id> <status> [note...]")
		}
		note := strings.Join(args[3:], " ")
		updated, err := a.bookings.Transition(ctx, args[1], domain.BookingStatus(args[2]), note)
		if err != nil {
			return err
		}
		color.Green.Printf("booking %s is now %s\n", updated.ID, updated.Status)

	default:
		return fmt.Errorf("unknown command %q, try 'help'", args[0])
	}
	return nil
}

func parseBookingRequest(args []string) (domain.BookingRequest, error) {
	start, err := time.Parse(time.DateOnly, args[1])
	if err != nil {
		return domain.BookingRequest{}, fmt.Errorf("bad start date: %w", err)
	}
	end, err := time.Parse(time.DateOnly, args[2])
	if err != nil {
		return domain.BookingRequest{}, fmt.Errorf("bad end date: %w", err)
	}
	price, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return domain.BookingRequest{}, fmt.Errorf("bad price: %w", err)
	}
	return domain.BookingRequest{
		ItemID:      args[0],
		StartDate:   start,
		EndDate:     end,
		PricePerDay: price,
	}, nil
}

func printHelp() {
	fmt.Println(`login <email> <password>   start a session
register <username> <email> <password> <full name>   create an account
resume <token>             restore a stored session
whoami                     show the current identity
profile <full name>        update the profile
logout                     end the session
chats                      list conversations
open <user-id>             focus a conversation (fetches history if empty)
close                      drop the focus
send <user-id> <text>      send a message
read <message-id>          mark a message read
find <terms>               search messages seen this session
bookings                   refresh and list bookings
book <item> <start> <end> <price>   request a booking
move <booking-id> <status> [note]   transition a booking`)
}
