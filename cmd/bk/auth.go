package main

import (
	"context"
	"fmt"
	"time"
)

func cmdRegister(ctx context.Context, c *cli, args []string) error {
	fs := c.newFlags("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "email")
	pw := fs.String("password", "", "password (prompted when empty)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *name == "" || *email == "" {
		return usageErr("register: need -name and -email")
	}
	p, err := c.orPrompt(*pw, "Password: ")
	if err != nil {
		return err
	}
	if err := c.app.Session.Register(ctx, *name, *email, p); err != nil {
		return err
	}
	u := c.app.Session.User()
	fmt.Fprintf(c.stdout, "registered %s (%s)\n", u.Email, u.ID)
	return nil
}

func cmdLogin(ctx context.Context, c *cli, args []string) error {
	fs := c.newFlags("login")
	email := fs.String("email", "", "email")
	pw := fs.String("password", "", "password (prompted when empty)")
	remember := fs.Bool("remember", false, "keep the session across restarts")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *email == "" {
		return usageErr("login: need -email")
	}
	p, err := c.orPrompt(*pw, "Password: ")
	if err != nil {
		return err
	}
	if err := c.app.Session.Login(ctx, *email, p, *remember); err != nil {
		return err
	}
	u := c.app.Session.User()
	fmt.Fprintf(c.stdout, "logged in as %s\n", u.Email)
	return nil
}

func cmdLogout(ctx context.Context, c *cli, args []string) error {
	if err := parse(c.newFlags("logout"), args); err != nil {
		return err
	}
	c.app.Session.Logout(ctx)
	fmt.Fprintln(c.stdout, "logged out")
	return nil
}

func cmdWhoami(_ context.Context, c *cli, args []string) error {
	if err := parse(c.newFlags("whoami"), args); err != nil {
		return err
	}
	if err := c.requireSession(); err != nil {
		return err
	}
	u := c.app.Session.User()
	fmt.Fprintf(c.stdout, "%s <%s> id=%s\n", u.Name, u.Email, u.ID)
	if exp, ok := c.app.Session.AccessTokenExpiry(); ok {
		left := exp.Sub(c.now()).Truncate(time.Second)
		if left > 0 {
			fmt.Fprintf(c.stdout, "access token expires in %s (refreshed automatically)\n", left)
		} else {
			fmt.Fprintln(c.stdout, "access token expired (refreshed on next request)")
		}
	}
	if c.app.Session.RememberMe() {
		fmt.Fprintln(c.stdout, "remember me: on")
	}
	return nil
}
