package perimeter

import "github.com/sirupsen/logrus"

// log 边界控制模块的日志记录器
var log = logrus.WithField("module", "perimeter")
