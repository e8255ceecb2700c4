package actuator

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "actuator")
