package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/splitsync/internal/client/models"
	"github.com/dmitrijs2005/splitsync/internal/client/services"
	"github.com/dmitrijs2005/splitsync/internal/client/syncer"
)

var errUsage = errors.New("usage")

func usage(s string) error { return fmt.Errorf("%w: %s", errUsage, s) }

func (a *App) Status(ctx context.Context) error {
	counts, err := a.ledger.Status(ctx)
	if err != nil {
		return err
	}

	types := make([]models.EntityType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	slices.Sort(types)

	printlnFn("Mode:", a.mode())
	for _, t := range types {
		c := counts[t]
		printlnFn(fmt.Sprintf("%-20s synced=%d pending=%d failed=%d", t,
			c[models.StatusSynced], c[models.StatusPendingSync], c[models.StatusSyncFailed]))
	}

	if a.registry == nil {
		return nil
	}
	counters, err := syncCounters(a.registry)
	if err != nil {
		return err
	}
	if len(counters) > 0 {
		printlnFn("Sync counters:")
		for _, c := range counters {
			printlnFn("  " + c)
		}
	}
	return nil
}

func (a *App) Sync(ctx context.Context) error {
	sess, _, err := a.requireSession()
	if err != nil {
		return err
	}
	if !sess.Online {
		return errors.New("offline session, login again while the server is reachable to sync")
	}

	report, err := a.ledger.Sync(ctx, sess, a.deviceID)
	if report != nil {
		printlnFn(report.String())
	}
	if errors.Is(err, syncer.ErrOffline) {
		a.setMode(ctx, ModeOffline)
	}
	return err
}

func (a *App) Users(ctx context.Context) error {
	users, err := a.ledger.Users(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		printlnFn(fmt.Sprintf("%6d  %-20s %s", u.LocalID, u.Username, u.SyncStatus))
	}
	return nil
}

func (a *App) Groups(ctx context.Context) error {
	_, profile, err := a.requireSession()
	if err != nil {
		return err
	}
	groups, err := a.ledger.Groups(ctx, profile)
	if err != nil {
		return err
	}
	for _, g := range groups {
		archived := ""
		if g.Archived {
			archived = " (archived)"
		}
		printlnFn(fmt.Sprintf("%6d  %-20s %s members=%d %s%s", g.LocalID, g.Name, g.Currency, g.Members, g.Status, archived))
	}
	return nil
}

func (a *App) AddGroup(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("addgroup <name> <currency>")
	}
	_, profile, err := a.requireSession()
	if err != nil {
		return err
	}
	id, err := a.ledger.CreateGroup(ctx, profile, args[0], strings.ToUpper(args[1]))
	if err != nil {
		return err
	}
	printlnFn("Created group", id)
	return nil
}

func (a *App) AddMember(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return usage("addmember <group> <user>")
	}
	groupID, err := parseID(args[0])
	if err != nil {
		return err
	}
	userID, err := parseID(args[1])
	if err != nil {
		return err
	}
	if _, err := a.ledger.AddMember(ctx, groupID, userID); err != nil {
		return err
	}
	printlnFn("Member added")
	return nil
}

// Pay records a payment by the signed-in user split equally between the
// group's members.
func (a *App) Pay(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("pay <group> <amount> [description]")
	}
	_, profile, err := a.requireSession()
	if err != nil {
		return err
	}
	groupID, err := parseID(args[0])
	if err != nil {
		return err
	}
	amount, err := parseAmount(args[1])
	if err != nil {
		return err
	}

	members, err := a.ledger.Members(ctx, groupID)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return fmt.Errorf("group %d has no members", groupID)
	}

	id, err := a.ledger.RecordPayment(ctx, services.PaymentInput{
		GroupID:     groupID,
		PaidBy:      profile,
		CreatedBy:   profile,
		Amount:      amount,
		Description: strings.Join(args[2:], " "),
		Splits:      services.EqualSplits(amount, members),
	})
	if err != nil {
		return err
	}
	printlnFn("Recorded payment", id)
	return nil
}

func (a *App) Archive(ctx context.Context, args []string) error {
	return a.toggleArchive(ctx, args, "archive", a.ledger.ArchiveGroup)
}

func (a *App) Restore(ctx context.Context, args []string) error {
	return a.toggleArchive(ctx, args, "restore", a.ledger.RestoreGroup)
}

func (a *App) toggleArchive(ctx context.Context, args []string, name string, fn func(ctx context.Context, userID, groupID int64) error) error {
	if len(args) != 1 {
		return usage(name + " <group>")
	}
	_, profile, err := a.requireSession()
	if err != nil {
		return err
	}
	groupID, err := parseID(args[0])
	if err != nil {
		return err
	}
	return fn(ctx, profile, groupID)
}

func (a *App) Reauth(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("reauth <bank account>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return a.ledger.FlagReauthentication(ctx, id)
}
