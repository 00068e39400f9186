// Package queue はRabbitMQ（AMQP 0-9-1）を使ったトピック単位のメッセージ配送を提供する。
// 1つのtopic exchangeに対し、トピックごとに永続キュー "<exchange>.<topic>" を束縛する。
package queue

// 配送トピック。
const (
	TopicPoll           = "poll"
	TopicScheduleUpdate = "scheduleUpdate"
	TopicHourlyCleanup  = "hourlyCleanup"
	TopicDailyCleanup   = "dailyCleanup"
)

// QueueName はトピックに対応する永続キュー名を返す。
func QueueName(exchange, topic string) string {
	return exchange + "." + topic
}
