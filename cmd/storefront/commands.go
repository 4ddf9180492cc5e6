package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"

	"storefront-client/internal/domain"
)

var errQuit = errors.New("quit")

// shellCommands is the grammar of one shell line.
type shellCommands struct {
	Add      addCmd      `cmd:"" help:"Add one unit of a product to the cart."`
	Remove   removeCmd   `cmd:"" aliases:"rm" help:"Remove a product from the cart."`
	Set      setCmd      `cmd:"" help:"Set a product's quantity. Zero removes it."`
	Clear    clearCmd    `cmd:"" help:"Empty the cart."`
	Show     showCmd     `cmd:"" aliases:"ls" help:"Show the cart."`
	Login    loginCmd    `cmd:"" help:"Sign in."`
	Register registerCmd `cmd:"" help:"Create an account and sign in."`
	Logout   logoutCmd   `cmd:"" help:"Sign out. The saved cart is kept."`
	Status   statusCmd   `cmd:"" help:"Show session and sync status."`
	Sync     syncCmd     `cmd:"" help:"Reload the saved cart from the account."`
	Quit     quitCmd     `cmd:"" aliases:"exit" help:"Leave the shell."`
	Help     helpCmd     `cmd:"" help:"List the commands."`
}

type addCmd struct {
	ID       string `arg:"" help:"Product id."`
	Name     string `arg:"" help:"Product name."`
	Price    string `arg:"" help:"Unit price, e.g. 19.99."`
	Category string `arg:"" optional:"" help:"Product category."`
}

func (c *addCmd) Run(ctx context.Context, a *app) error {
	price, err := decimal.NewFromString(c.Price)
	if err != nil {
		return fmt.Errorf("invalid price %q", c.Price)
	}
	a.cart.AddItem(ctx, domain.Product{
		ID:       domain.ProductID(c.ID),
		Name:     c.Name,
		Price:    price,
		Category: c.Category,
	})
	return nil
}

type removeCmd struct {
	ID string `arg:"" help:"Product id."`
}

func (c *removeCmd) Run(ctx context.Context, a *app) error {
	if _, ok := a.cart.RemoveItem(ctx, domain.ProductID(c.ID)); !ok {
		return fmt.Errorf("%s is not in the cart", c.ID)
	}
	return nil
}

type setCmd struct {
	ID       string `arg:"" help:"Product id."`
	Quantity int    `arg:"" help:"New quantity."`
}

func (c *setCmd) Run(ctx context.Context, a *app) error {
	if _, ok := a.cart.UpdateQuantity(ctx, domain.ProductID(c.ID), c.Quantity); !ok {
		return fmt.Errorf("%s is not in the cart", c.ID)
	}
	return nil
}

type clearCmd struct {
	Local bool `help:"Leave the account's saved cart untouched."`
}

func (c *clearCmd) Run(ctx context.Context, a *app) error {
	a.cart.Clear(ctx, !c.Local)
	return nil
}

type showCmd struct{}

func (c *showCmd) Run(a *app) error {
	items := a.cart.Items()
	if len(items) == 0 {
		a.printf("cart is empty\n")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "ID\tNAME\tQTY\tPRICE\tSUBTOTAL\t\n")
	for _, l := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t\n", l.ID, l.Name, l.Quantity, l.UnitPrice.StringFixed(2), l.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(tw, "\t\t%d\t\t%s\t\n", a.cart.ItemCount(), a.cart.Total().StringFixed(2))
	return tw.Flush()
}

type loginCmd struct {
	Email    string `arg:""`
	Password string `arg:""`
}

func (c *loginCmd) Run(ctx context.Context, a *app) error {
	if _, err := a.sessions.Login(ctx, c.Email, c.Password); err != nil {
		return err
	}
	return a.cart.Wait(ctx)
}

type registerCmd struct {
	Name     string `arg:""`
	Email    string `arg:""`
	Password string `arg:""`
	Role     string `enum:"buyer,seller" default:"buyer" help:"Account role (${enum})."`
}

func (c *registerCmd) Run(ctx context.Context, a *app) error {
	_, err := a.sessions.Register(ctx, domain.RegisterRequest{
		Name:     c.Name,
		Email:    c.Email,
		Password: c.Password,
		Role:     c.Role,
	})
	if err != nil {
		return err
	}
	return a.cart.Wait(ctx)
}

type logoutCmd struct{}

func (c *logoutCmd) Run(ctx context.Context, a *app) error {
	return a.sessions.Logout(ctx)
}

type statusCmd struct{}

func (c *statusCmd) Run(a *app) error {
	status := a.cart.Status()
	if s := a.cart.Session(); s != nil {
		a.printf("user:     %s <%s> (%s)\n", s.DisplayName, s.Email, s.Role)
	} else {
		a.printf("user:     anonymous\n")
	}
	a.printf("state:    %s\n", status.State)
	a.printf("loaded:   %t\n", status.BackendLoaded)
	a.printf("synced:   %t\n", status.Synced)
	if status.Pushing {
		a.printf("pushing:  true\n")
	}
	if status.Err != nil {
		a.printf("error:    %s\n", status.Err)
	}
	return nil
}

type syncCmd struct{}

func (c *syncCmd) Run(ctx context.Context, a *app) error {
	return a.cart.Resync(ctx)
}

type helpCmd struct{}

func (c *helpCmd) Run(parser *kong.Kong) error {
	root, err := kong.Trace(parser, nil)
	if err != nil {
		return err
	}
	return root.PrintUsage(false)
}

type quitCmd struct{}

func (c *quitCmd) Run() error {
	return errQuit
}
