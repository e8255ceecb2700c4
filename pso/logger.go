package pso

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "pso")
