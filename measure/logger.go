package measure

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "measure")
