// Package domain 品种交易状态的领域模型。状态同时驱动行情缓存覆盖与交易准入。
package domain

import (
	"context"

	"gorm.io/gorm"

	marketdomain "github.com/wyfcoding/goldtrading/internal/marketdata/domain"
)

// State 品种交易状态
type State string

const (
	// StateOnline 正常：行情照常刷新，允许交易
	StateOnline State = "ONLINE"
	// StatePause 暂停：行情冻结在进入暂停时的值，拒绝交易
	StatePause State = "PAUSE"
	// StateStop 停牌：行情强制归零，拒绝交易
	StateStop State = "STOP"
)

// Valid 判断状态是否合法
func (s State) Valid() bool {
	switch s {
	case StateOnline, StatePause, StateStop:
		return true
	}
	return false
}

// InstrumentStatus 品种状态实体，每品种一行，upsert 维护，永不删除
type InstrumentStatus struct {
	gorm.Model
	// Instrument 品种
	Instrument string `gorm:"column:instrument;type:varchar(20);uniqueIndex;not null" json:"goldType"`
	// State 状态
	State string `gorm:"column:state;type:varchar(10);not null" json:"status"`
}

// TableName 指定表名
func (InstrumentStatus) TableName() string {
	return "instrument_status"
}

// Event 状态变更事件，同步推送给订阅者
type Event struct {
	// Instrument 品种
	Instrument marketdomain.Instrument `json:"goldType"`
	// State 新状态
	State State `json:"status"`
}

// Repository 状态仓储接口
type Repository interface {
	// Upsert 写入或更新品种状态
	Upsert(ctx context.Context, inst marketdomain.Instrument, state State) error
	// GetAll 返回全部状态行
	GetAll(ctx context.Context) ([]*InstrumentStatus, error)
}
