// Command taker takes a timed test against the API from a terminal.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/yourusername/testprep-api/internal/domain/entity"
	"github.com/yourusername/testprep-api/internal/handler/dto"
	"github.com/yourusername/testprep-api/pkg/apiclient"
	"github.com/yourusername/testprep-api/pkg/logger"
	"github.com/yourusername/testprep-api/pkg/navigator"
)

func main() {
	vip := viper.New()
	vip.SetEnvPrefix("TAKER")
	vip.AutomaticEnv()
	vip.SetDefault("url", "http://localhost:8080")
	vip.SetDefault("duration", 30*time.Minute)

	baseURL := flag.String("url", vip.GetString("url"), "API base URL (TAKER_URL)")
	identifier := flag.String("user", vip.GetString("user"), "email or username (TAKER_USER)")
	password := flag.String("password", vip.GetString("password"), "password (TAKER_PASSWORD)")
	testType := flag.String("test", string(entity.TestKindSATMath), "test type")
	diagnostic := flag.Bool("diagnostic", false, "start a diagnostic test")
	adaptive := flag.Bool("adaptive", false, "adapt difficulty to past scores")
	topic := flag.String("topic", "", "optional topic")
	duration := flag.Duration("duration", vip.GetDuration("duration"), "time limit")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger.Init(level, true)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := apiclient.New(*baseURL, 0)
	if _, err := client.Login(ctx, *identifier, *password); err != nil {
		log.Fatal().Err(err).Msg("login failed")
	}

	session, err := client.StartSession(ctx, dto.StartSessionRequest{
		TestType:     entity.TestKind(*testType),
		IsDiagnostic: *diagnostic,
		IsAdaptive:   *adaptive,
		Topic:        *topic,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start test")
	}

	if err := take(ctx, client, session, *duration); err != nil {
		log.Fatal().Err(err).Msg("test aborted")
	}
}

func take(ctx context.Context, client *apiclient.Client, session *dto.SessionResponse, duration time.Duration) error {
	ids := make([]string, len(session.Questions))
	for i, q := range session.Questions {
		ids[i] = q.ID
	}

	var final *dto.FinalizeResponse
	submit := func(ctx context.Context, sessionID string, answers []entity.UserAnswer) error {
		res, err := client.Finalize(ctx, sessionID, answers)
		if err != nil {
			return err
		}
		final = res
		return nil
	}

	cfg := navigator.DefaultConfig()
	cfg.Duration = duration
	nav, err := navigator.New(session.SessionID, ids, submit, cfg)
	if err != nil {
		return err
	}
	if err := nav.Start(ctx); err != nil {
		return err
	}

	fmt.Printf("%s: %d questions, %s. Commands: <option number>, n, p, j <n>, pause, resume, quit, submit, retry, abandon\n",
		session.TestType, session.TotalQuestions, duration)
	printQuestion(session, nav, nav.Current())

	go readCommands(nav)

	events := nav.Events()
	for events != nil {
		select {
		case <-ctx.Done():
			stopNavigator(nav)
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				break
			}
			switch ev.Kind {
			case navigator.Navigated:
				printQuestion(session, nav, ev.Index)
			case navigator.Tick:
				if ev.Remaining%time.Minute == 0 || ev.Remaining <= 10*time.Second {
					fmt.Printf("  [%s left]\n", ev.Remaining)
				}
			case navigator.StateChanged:
				fmt.Printf("  [%s]\n", ev.State)
			case navigator.SubmitFailed:
				var apiErr *apiclient.APIError
				if errors.As(ev.Err, &apiErr) && apiErr.AlreadyCompleted() {
					fmt.Println("This test was already submitted. Check your results history.")
					_ = nav.Abandon()
					return ev.Err
				}
				fmt.Printf("Submission failed: %v. Type retry to send the answers again or abandon to leave.\n", ev.Err)
			}
		}
	}

	if final == nil {
		fmt.Println("Test abandoned.")
		return nil
	}
	printResult(final)
	return nil
}

// stopNavigator ends the navigator on interrupt from whatever state it is in. A running
// test is paused first so its open session can be resumed later.
func stopNavigator(nav *navigator.Navigator) {
	switch nav.State() {
	case navigator.Running:
		if err := nav.Pause(); err == nil {
			_ = nav.Quit()
		}
	case navigator.Paused:
		_ = nav.Quit()
	case navigator.Submitting:
		_ = nav.Abandon()
	}
}

func readCommands(nav *navigator.Navigator) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		var err error
		switch fields[0] {
		case "n":
			err = nav.Next()
		case "p":
			err = nav.Prev()
		case "j":
			if len(fields) < 2 {
				err = errors.New("usage: j <question number>")
				break
			}
			var n int
			if n, err = strconv.Atoi(fields[1]); err == nil {
				err = nav.Jump(n - 1)
			}
		case "pause":
			err = nav.Pause()
		case "resume":
			err = nav.Resume()
		case "quit":
			err = nav.Quit()
		case "submit":
			err = nav.Submit()
		case "retry":
			err = nav.Retry()
		case "abandon":
			err = nav.Abandon()
		default:
			var option int
			if option, err = strconv.Atoi(fields[0]); err == nil {
				err = nav.Select(option - 1)
			}
		}
		if err != nil {
			fmt.Printf("  ! %v\n", err)
		}
		if nav.State() == navigator.Done {
			return
		}
	}
}

func printQuestion(session *dto.SessionResponse, nav *navigator.Navigator, index int) {
	q := session.Questions[index]
	fmt.Printf("\nQuestion %d/%d", index+1, len(session.Questions))
	if q.Topic != "" {
		fmt.Printf(" (%s)", q.Topic)
	}
	fmt.Println()
	if q.Passage != "" {
		fmt.Println(q.Passage)
		fmt.Println()
	}
	fmt.Println(q.Text)
	selected, answered := nav.Answer(index)
	for i, opt := range q.Options {
		marker := " "
		if answered && selected == i {
			marker = "*"
		}
		fmt.Printf(" %s %d) %s\n", marker, i+1, opt)
	}
}

func printResult(res *dto.FinalizeResponse) {
	r := res.Result
	fmt.Printf("\nScore: %d%%  (+%d XP, graded by %s)\n", r.OverallScore, r.XPGained, r.GradedBy)
	if r.Summary != "" {
		fmt.Println(r.Summary)
	}
	for _, tp := range r.TopicPerformance {
		fmt.Printf("  %-24s %d/%d\n", tp.Topic, tp.Correct, tp.Total)
	}
	if res.UpdatedUser != nil {
		fmt.Printf("Level %d, %d XP total, %d tests taken\n", res.UpdatedUser.Level, res.UpdatedUser.XP, res.UpdatedUser.TestsTaken)
	}
	for _, b := range res.UnlockedBadges {
		fmt.Printf("Badge unlocked: %s\n", b)
	}
}
