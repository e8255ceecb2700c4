package main

import (
	"encoding/base64"
	"flag"
	"os"
	"os/signal"
	"syscall"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/tsinghua-fib-lab/perimeter-control/perimeter"
	"github.com/tsinghua-fib-lab/perimeter-control/pso"
	"github.com/tsinghua-fib-lab/perimeter-control/task"
	"github.com/tsinghua-fib-lab/perimeter-control/utils/config"
	"github.com/tsinghua-fib-lab/perimeter-control/utils/input"
)

var (
	// 控制任务名，主要用于日志与输出的表名前缀
	job = flag.String("job", "job0", "the name of the whole control task")
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// 数据加载input的缓存地址，设置为空则禁用缓存功能
	// 缓存：将路口配置序列化到本地文件系统，并总是先试图从文件系统中加载
	cacheDir = flag.String("cache", "data/", "input cache dir path (empty means disable cache)")
	// 离线增益整定模式，不运行在线控制循环
	tune = flag.Bool("tune", false, "run offline PI gain tuning instead of the control loop")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "perimeter-control")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	// log: 运行时才修改
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", logLevels)
	}
	// 获取配置
	var c config.Config
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	} else {
		log.Panic("config file or config data must be specified")
	}
	if err := yaml.UnmarshalStrict(file, &c); err != nil {
		log.Panicf("config file load err: %v", err)
	}
	log.Infof("%+v", c)

	if *tune {
		runTuning(c)
		return
	}

	t := task.NewContext(*job, *cacheDir, c, nil)

	// 优雅退出：收到SIGINT/SIGTERM后在当前控制步结束时停止
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		log.Infof("received signal %v, closing", s)
		t.Close()
	}()

	t.Run()
}

// runTuning 离线增益整定
// 功能：以配置的回放序列为需求，对{kp, ki}做粒子群搜索并输出最优组合
func runTuning(c config.Config) {
	if len(c.Replay.Accumulation) == 0 {
		log.Panic("tuning requires replay.accumulation in config")
	}
	initRes := input.Init(c, *cacheDir)
	set := initRes.Intersections

	obj := pso.NewTrackingObjective(pso.PlantOptions{
		NHat:           c.Controller.NHat,
		InitialN:       c.Replay.Accumulation[0],
		InitialInflow:  c.Controller.InitialInflow,
		Demand:         c.Replay.Accumulation,
		CompletionRate: 0.1,
		Globals:        perimeter.GlobalsFromConfig(set),
		Specs:          perimeter.SpecsFromConfig(set),
	})
	res := pso.Optimize(obj, pso.DefaultOptions(pso.Bounds{
		KPMin: 0, KPMax: 100,
		KIMin: 0, KIMax: 20,
	}))
	log.Infof("tuning complete: kp=%.4f ki=%.4f fitness=%.6f", res.KP, res.KI, res.Fitness)
}
