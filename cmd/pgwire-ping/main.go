// Command pgwire-ping is a flag-configured smoke test for the driver
// package: it opens one connection, runs a query, prints the decoded rows,
// and exits. It exists to exercise the whole stack end to end, not as a
// general-purpose client.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/sirupsen/logrus"

	"github.com/cedardb/pgwire/driver"
	"github.com/cedardb/pgwire/protocol"
)

var (
	host     = "127.0.0.1"
	port     = 5432
	user     = "postgres"
	password = ""
	database = "postgres"
	query    = "select 1"
	logLevel = int(logrus.InfoLevel)
	timeout  = 10 * time.Second
)

func init() {
	flag.StringVar(&host, "host", host, "The server host to connect to.")
	flag.IntVar(&port, "port", port, "The server port to connect to.")
	flag.StringVar(&user, "user", user, "The user to authenticate as.")
	flag.StringVar(&password, "password", password, "The password to authenticate with.")
	flag.StringVar(&database, "database", database, "The database to connect to.")
	flag.StringVar(&query, "query", query, "The SQL statement to run.")
	flag.IntVar(&logLevel, "loglevel", logLevel, "The log level to use.")
	flag.DurationVar(&timeout, "timeout", timeout, "The connection and query timeout.")
}

func main() {
	flag.Parse()
	logrus.SetLevel(logrus.Level(logLevel))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", host, port)
	creds := protocol.AuthCredentials{User: user, Password: password}
	params := map[string]string{"database": database}

	conn, err := driver.Open(ctx, "tcp", addr, params, creds)
	if err != nil {
		logrus.WithError(err).Fatalln("pgwire-ping: failed to connect")
	}
	defer conn.Close()

	logrus.Infof("pgwire-ping: connected to %s, state %s", addr, conn.State())

	results, err := conn.Query(query)
	if err != nil {
		logrus.WithError(err).Fatalln("pgwire-ping: query failed")
	}

	for i, rs := range results {
		fmt.Printf("statement %d: %s\n", i, rs.Tag())
		cols := rs.Columns()
		for rs.Next() {
			values, err := rs.Values()
			if err != nil {
				logrus.WithError(err).Fatalln("pgwire-ping: failed to decode row")
			}
			for j, v := range values {
				name := fmt.Sprintf("col%d", j)
				if j < len(cols) {
					name = cols[j].Name
				}
				fmt.Printf("  %s = %v\n", name, v)
			}
		}
	}
}
