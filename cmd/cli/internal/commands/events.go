package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/wolfeidau/smartcampus/internal/campus"
)

// EventsCmd browses and joins campus events.
type EventsCmd struct {
	List      EventsListCmd      `cmd:"" help:"List events"`
	Mine      EventsMineCmd      `cmd:"" help:"List events you organize"`
	Attending EventsAttendingCmd `cmd:"" help:"List events you joined"`
	Join      EventsJoinCmd      `cmd:"" help:"Join an event"`
	Leave     EventsLeaveCmd     `cmd:"" help:"Leave an event"`
	Like      EventsLikeCmd      `cmd:"" help:"Like or unlike an event"`
	Create    EventsCreateCmd    `cmd:"" help:"Publish an event"`
	Update    EventsUpdateCmd    `cmd:"" help:"Change an event you organize"`
	Delete    EventsDeleteCmd    `cmd:"" help:"Delete an event you organize"`
}

type EventsListCmd struct {
	Search   string `help:"Free text search"`
	Type     string `help:"Event type (ACADEMIC, SOCIAL, STUDY_SESSION, WORKSHOP, CONFERENCE, CULTURAL, SPORTS, OTHER)" default:"ALL"`
	Page     int    `help:"Page number" default:"1"`
	PageSize int    `help:"Number of events per page" default:"20"`
}

func (e *EventsListCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	page, err := app.Events.List(ctx, campus.EventFilter{
		Search:    e.Search,
		EventType: strings.ToUpper(e.Type),
		Page:      e.Page,
		PageSize:  e.PageSize,
	})
	if err != nil {
		return err
	}

	out := globals.out()
	printEvents(out, page.Results)
	if page.Next != nil {
		fmt.Fprintf(out, "\nShowing %d of %d events. Next page: --page %d\n", len(page.Results), page.Count, e.Page+1)
	}

	return nil
}

type EventsMineCmd struct{}

func (e *EventsMineCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	events, err := app.Events.Mine(ctx)
	if err != nil {
		return err
	}

	printEvents(globals.out(), events)
	return nil
}

type EventsAttendingCmd struct{}

func (e *EventsAttendingCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	events, err := app.Events.Attending(ctx)
	if err != nil {
		return err
	}

	printEvents(globals.out(), events)
	return nil
}

type EventsJoinCmd struct {
	ID string `arg:"" help:"Event ID"`
}

func (e *EventsJoinCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	ev, err := app.Events.Join(ctx, e.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(globals.out(), "Joined %q (%d spots left).\n", ev.Title, ev.AvailableSpots)
	return nil
}

type EventsLeaveCmd struct {
	ID string `arg:"" help:"Event ID"`
}

func (e *EventsLeaveCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	ev, err := app.Events.Leave(ctx, e.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(globals.out(), "Left %q.\n", ev.Title)
	return nil
}

type EventsLikeCmd struct {
	ID string `arg:"" help:"Event ID"`
}

func (e *EventsLikeCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	ev, err := app.Events.Like(ctx, e.ID)
	if err != nil {
		return err
	}

	verb := "Unliked"
	if ev.IsLiked {
		verb = "Liked"
	}
	fmt.Fprintf(globals.out(), "%s %q (%d likes).\n", verb, ev.Title, ev.LikesCount)
	return nil
}

type EventsCreateCmd struct {
	Title        string   `arg:"" help:"Event title"`
	Description  string   `help:"Event description"`
	Type         string   `help:"Event type" default:"OTHER"`
	Start        string   `help:"Start time (RFC 3339)" required:""`
	End          string   `help:"End time (RFC 3339)" required:""`
	Location     string   `help:"Where the event takes place" required:""`
	OnlineLink   string   `help:"Link for online attendance"`
	MaxAttendees int      `help:"Attendee limit, 0 for none"`
	Price        float64  `help:"Ticket price, 0 for free"`
	Requirements []string `help:"Requirements for attendees"`
	Tags         []string `help:"Tags"`
}

func (e *EventsCreateCmd) input() campus.EventInput {
	in := campus.EventInput{
		Title:         e.Title,
		Description:   e.Description,
		EventType:     strings.ToUpper(e.Type),
		StartDateTime: e.Start,
		EndDateTime:   e.End,
		Location:      e.Location,
		OnlineLink:    e.OnlineLink,
		Requirements:  e.Requirements,
		Tags:          e.Tags,
	}
	if e.MaxAttendees > 0 {
		in.MaxAttendees = &e.MaxAttendees
	}
	if e.Price > 0 {
		in.Price = &e.Price
	}
	return in
}

func (e *EventsCreateCmd) Run(ctx context.Context, globals *Globals) error {
	in := e.input()
	if err := in.Validate(); err != nil {
		return err
	}

	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	ev, err := app.Events.Create(ctx, in)
	if err != nil {
		return err
	}

	fmt.Fprintf(globals.out(), "Created %q with ID %s.\n", ev.Title, ev.ID)
	return nil
}

type EventsUpdateCmd struct {
	ID           string   `arg:"" help:"Event ID"`
	Title        *string  `help:"Event title"`
	Description  *string  `help:"Event description"`
	Type         *string  `help:"Event type"`
	Start        *string  `help:"Start time (RFC 3339)"`
	End          *string  `help:"End time (RFC 3339)"`
	Location     *string  `help:"Where the event takes place"`
	OnlineLink   *string  `help:"Link for online attendance"`
	Status       *string  `help:"Event status (DRAFT, PUBLISHED, CANCELLED, COMPLETED)"`
	Requirements []string `help:"Requirements, replaces the current list"`
	Tags         []string `help:"Tags, replaces the current list"`
}

func (e *EventsUpdateCmd) patch() campus.EventPatch {
	patch := campus.EventPatch{
		Title:         e.Title,
		Description:   e.Description,
		StartDateTime: e.Start,
		EndDateTime:   e.End,
		Location:      e.Location,
		OnlineLink:    e.OnlineLink,
	}
	if e.Type != nil {
		v := strings.ToUpper(*e.Type)
		patch.EventType = &v
	}
	if e.Status != nil {
		v := strings.ToUpper(*e.Status)
		patch.Status = &v
	}
	if e.Requirements != nil {
		patch.Requirements = &e.Requirements
	}
	if e.Tags != nil {
		patch.Tags = &e.Tags
	}
	return patch
}

func (e *EventsUpdateCmd) Run(ctx context.Context, globals *Globals) error {
	patch := e.patch()
	if patch.IsEmpty() {
		return errors.New("nothing to update, pass at least one field")
	}

	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	ev, err := app.Events.Update(ctx, e.ID, patch)
	if err != nil {
		return err
	}

	fmt.Fprintf(globals.out(), "Updated %q (%s).\n", ev.Title, ev.Status)
	return nil
}

type EventsDeleteCmd struct {
	ID string `arg:"" help:"Event ID"`
}

func (e *EventsDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	app, err := globals.NewApp()
	if err != nil {
		return err
	}

	if err := app.Events.Delete(ctx, e.ID); err != nil {
		return err
	}

	fmt.Fprintf(globals.out(), "Deleted event %s.\n", e.ID)
	return nil
}

func printEvents(w io.Writer, events []campus.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}

	t := newTable(w)
	fmt.Fprintln(t, "ID\tTITLE\tTYPE\tSTART\tORGANIZER\tATTENDEES\tSTATUS")
	for _, ev := range events {
		attendees := fmt.Sprintf("%d", ev.CurrentAttendees)
		if ev.MaxAttendees != nil {
			attendees = fmt.Sprintf("%d/%d", ev.CurrentAttendees, *ev.MaxAttendees)
		}

		title := ev.Title
		if r := []rune(title); len(r) > 40 {
			title = string(r[:37]) + "..."
		}

		fmt.Fprintf(t, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ev.ID, title, ev.EventType, ev.StartDateTime, ev.Organizer.Name, attendees, ev.Status)
	}
	_ = t.Flush()
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
